package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/openlaps/apexfantasy/models"
)

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	ErrInvalidSeason = errors.New("invalid season year")

	ErrUnknownManager = errors.New("manager not found")
	ErrUnknownRace    = errors.New("race not found")
	ErrRosterNotFound = errors.New("roster not found")
	ErrDriverNotFound = errors.New("driver not found")

	// Ошибки конфликтов
	ErrDuplicateRoster        = errors.New("a roster already exists for this manager and race")
	ErrDriverNameConflict     = errors.New("driver name is already in use")
	ErrUsernameConflict       = errors.New("username is already in use")
	ErrConflict               = errors.New("uniqueness conflict")
	ErrDriverStillReferenced  = errors.New("driver is referenced by at least one roster")
	ErrAlreadyProcessed       = errors.New("race has already been processed")
	ErrRosterLocked           = errors.New("race is locked or its submission deadline has passed")
	ErrEmptyDriverPool        = errors.New("season has no drivers")
	ErrDegenerateValuation    = errors.New("total driver value is zero, re-pricing is undefined")
	ErrEmptyRoster            = errors.New("roster must contain at least one driver")
	ErrDuplicateDrivers       = errors.New("roster contains duplicate drivers")
	ErrRosterTooLarge         = errors.New("roster exceeds the maximum driver count")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current manager")
	ErrInvalidCredentials     = errors.New("invalid username or password")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrInvalidCategory        = errors.New("unknown driver category")
	ErrInvalidVenuePoints     = errors.New("venue points must be positive")
	ErrValidationFailed       = errors.New("validation failed")
	ErrRosterOwnershipInvalid = errors.New("roster belongs to another manager")
	ErrUploadsDisabled        = errors.New("file storage is not configured")
)

// UnknownDriversError перечисляет идентификаторы, не найденные в сезоне.
type UnknownDriversError struct {
	IDs []int
}

func (e *UnknownDriversError) Error() string {
	parts := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		parts[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("unknown drivers: %s", strings.Join(parts, ", "))
}

func (e *UnknownDriversError) Is(target error) bool {
	return target == ErrDriverNotFound
}

// BudgetExceededError carries the overage so clients can render a precise
// message without re-querying.
type BudgetExceededError struct {
	Budget float64
	Cost   float64
	OverBy float64
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget exceeded: cost %.2f over budget %.2f by %.2f", e.Cost, e.Budget, e.OverBy)
}

// CompositionError carries the category tags the roster failed to cover.
type CompositionError struct {
	Missing []models.Category
}

func (e *CompositionError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		parts[i] = string(c)
	}
	return fmt.Sprintf("roster does not cover required categories: %s", strings.Join(parts, ", "))
}
