package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/repositories"
	"github.com/openlaps/apexfantasy/seasons"
)

// Actor — личность вызывающего, разрешённая пограничным слоем аутентификации.
type Actor struct {
	ManagerID int
	Role      models.ManagerRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// RosterService владеет жизненным циклом составов.
//
// Every mutation runs the roster write and its budget effect in one
// transaction; a reader can never observe a roster without its matching
// debit, or a debit without its roster.
type RosterService struct {
	resolver seasons.StoreResolver
	ledger   *BudgetLedger
	logger   *slog.Logger
	now      func() time.Time
}

func NewRosterService(resolver seasons.StoreResolver, ledger *BudgetLedger, logger *slog.Logger) *RosterService {
	return &RosterService{
		resolver: resolver,
		ledger:   ledger,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates and stores a new roster, debiting the manager's budget
// in the same transaction. Non-admin actors may only submit for themselves
// and only before the race locks.
func (s *RosterService) Create(ctx context.Context, season int, actor Actor, input RosterInput) (*models.Roster, error) {
	if !actor.IsAdmin() {
		if input.ManagerID != actor.ManagerID {
			return nil, ErrForbiddenOperation
		}
	}

	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	race, err := stores.Races.GetByID(ctx, nil, input.RaceID)
	if err != nil {
		return nil, mapRaceError(err)
	}
	if err := s.checkSubmissionOpen(race, actor); err != nil {
		return nil, err
	}
	if err := s.precheck(ctx, season, input); err != nil {
		return nil, err
	}

	roster := &models.Roster{
		ManagerID: input.ManagerID,
		RaceID:    input.RaceID,
		DriverIDs: input.DriverIDs,
	}

	err = stores.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Debit first: the budget guard re-checks affordability atomically,
		// closing the gap between validation and write.
		entry, err := s.ledger.Debit(ctx, stores, exec, input.ManagerID, input.DriverIDs)
		if err != nil {
			return err
		}
		roster.BudgetUsed = entry.Amount
		if err := stores.Rosters.Create(ctx, exec, roster); err != nil {
			if errors.Is(err, repositories.ErrRosterConflict) {
				return ErrDuplicateRoster
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("roster created",
		slog.Int("season", season),
		slog.Int("roster_id", roster.ID),
		slog.Int("manager_id", roster.ManagerID),
		slog.Int("race_id", roster.RaceID),
		slog.Float64("budget_used", roster.BudgetUsed))
	return roster, nil
}

// Update replaces a roster's driver set and applies the single signed
// budget adjustment cost(new) − budgetUsed(old) in the same transaction.
func (s *RosterService) Update(ctx context.Context, season int, actor Actor, rosterID int, driverIDs []int, declaredCost *float64) (*models.Roster, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	roster, err := stores.Rosters.GetByID(ctx, nil, rosterID)
	if err != nil {
		return nil, mapRosterError(err)
	}
	if !actor.IsAdmin() && roster.ManagerID != actor.ManagerID {
		return nil, ErrRosterOwnershipInvalid
	}
	race, err := stores.Races.GetByID(ctx, nil, roster.RaceID)
	if err != nil {
		return nil, mapRaceError(err)
	}
	if err := s.checkSubmissionOpen(race, actor); err != nil {
		return nil, err
	}
	// No standalone budget precheck here: affordability of an edit depends
	// on the refund of the old set, which only the in-transaction rebalance
	// can judge atomically.
	if err := validateDriverSet(driverIDs); err != nil {
		return nil, err
	}
	composition, err := s.ledger.ValidateComposition(ctx, season, driverIDs, nil)
	if err != nil {
		return nil, err
	}
	if !composition.Satisfied {
		return nil, &CompositionError{Missing: composition.Missing}
	}
	if declaredCost != nil {
		cost, err := s.ledger.Cost(ctx, season, driverIDs)
		if err != nil {
			return nil, err
		}
		if math.Abs(*declaredCost-cost) > CostTolerance {
			return nil, fmt.Errorf("%w: declared cost %.2f does not match computed cost %.2f",
				ErrValidationFailed, *declaredCost, cost)
		}
	}

	oldCost := roster.BudgetUsed
	err = stores.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		entry, newCost, err := s.ledger.Rebalance(ctx, stores, exec, roster.ManagerID, oldCost, driverIDs)
		if err != nil {
			return err
		}
		roster.DriverIDs = driverIDs
		roster.BudgetUsed = newCost
		if err := stores.Rosters.Update(ctx, exec, roster); err != nil {
			return mapRosterError(err)
		}
		s.logger.Info("roster rebalanced",
			slog.Int("season", season),
			slog.Int("roster_id", roster.ID),
			slog.Float64("delta", entry.Amount),
			slog.Float64("remaining_budget", entry.RemainingBudget))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// Delete removes a roster and credits back exactly the amount that was
// debited for it (its budgetUsed), restoring the pre-creation budget.
func (s *RosterService) Delete(ctx context.Context, season int, actor Actor, rosterID int) error {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return mapSeasonError(err)
	}
	roster, err := stores.Rosters.GetByID(ctx, nil, rosterID)
	if err != nil {
		return mapRosterError(err)
	}
	if !actor.IsAdmin() && roster.ManagerID != actor.ManagerID {
		return ErrRosterOwnershipInvalid
	}
	race, err := stores.Races.GetByID(ctx, nil, roster.RaceID)
	if err != nil {
		return mapRaceError(err)
	}
	if err := s.checkSubmissionOpen(race, actor); err != nil {
		return err
	}

	err = stores.Tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := stores.Rosters.Delete(ctx, exec, roster.ID); err != nil {
			return mapRosterError(err)
		}
		_, err := s.ledger.CreditAmount(ctx, stores, exec, roster.ManagerID, roster.BudgetUsed)
		return err
	})
	if err != nil {
		return err
	}

	s.logger.Info("roster deleted",
		slog.Int("season", season),
		slog.Int("roster_id", roster.ID),
		slog.Float64("budget_restored", roster.BudgetUsed))
	return nil
}

// GetByID returns a roster with its drivers expanded.
func (s *RosterService) GetByID(ctx context.Context, season int, actor Actor, rosterID int) (*models.Roster, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	roster, err := stores.Rosters.GetByID(ctx, nil, rosterID)
	if err != nil {
		return nil, mapRosterError(err)
	}
	if !actor.IsAdmin() && roster.ManagerID != actor.ManagerID {
		return nil, ErrRosterOwnershipInvalid
	}
	return s.expand(ctx, stores, roster)
}

// GetOwn returns the caller's roster for a race, if any.
func (s *RosterService) GetOwn(ctx context.Context, season int, actor Actor, raceID int) (*models.Roster, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	roster, err := stores.Rosters.GetByManagerAndRace(ctx, actor.ManagerID, raceID)
	if err != nil {
		return nil, mapRosterError(err)
	}
	return s.expand(ctx, stores, roster)
}

// ListByRace returns every roster submitted for a race.
func (s *RosterService) ListByRace(ctx context.Context, season, raceID int) ([]*models.Roster, error) {
	stores, err := s.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	if _, err := stores.Races.GetByID(ctx, nil, raceID); err != nil {
		return nil, mapRaceError(err)
	}
	return stores.Rosters.ListByRace(ctx, raceID)
}

// Validate exposes the composed pre-write validation read-only.
func (s *RosterService) Validate(ctx context.Context, season int, input RosterInput) (*RosterValidation, error) {
	return s.ledger.ValidateRoster(ctx, season, input)
}

// precheck raises the first failed semantic invariant as its typed error.
func (s *RosterService) precheck(ctx context.Context, season int, input RosterInput) error {
	if err := validateDriverSet(input.DriverIDs); err != nil {
		return err
	}
	check, err := s.ledger.ValidateBudget(ctx, season, input.ManagerID, input.DriverIDs)
	if err != nil {
		return err
	}
	if !check.WithinBudget {
		return &BudgetExceededError{Budget: check.ManagerBudget, Cost: check.Cost, OverBy: check.OverBy}
	}
	composition, err := s.ledger.ValidateComposition(ctx, season, input.DriverIDs, nil)
	if err != nil {
		return err
	}
	if !composition.Satisfied {
		return &CompositionError{Missing: composition.Missing}
	}
	if input.DeclaredCost != nil && math.Abs(*input.DeclaredCost-check.Cost) > CostTolerance {
		return fmt.Errorf("%w: declared cost %.2f does not match computed cost %.2f",
			ErrValidationFailed, *input.DeclaredCost, check.Cost)
	}
	return nil
}

func (s *RosterService) checkSubmissionOpen(race *models.Race, actor Actor) error {
	if actor.IsAdmin() {
		return nil
	}
	if race.IsLocked || race.DeadlinePassed(s.now()) {
		return ErrRosterLocked
	}
	return nil
}

func (s *RosterService) expand(ctx context.Context, stores *seasons.Stores, roster *models.Roster) (*models.Roster, error) {
	drivers, err := stores.Drivers.GetByIDs(ctx, nil, roster.DriverIDs)
	if err != nil {
		return nil, err
	}
	roster.Drivers = make([]models.Driver, len(drivers))
	for i, d := range drivers {
		roster.Drivers[i] = *d
	}
	return roster, nil
}

func mapRaceError(err error) error {
	if errors.Is(err, repositories.ErrRaceNotFound) {
		return ErrUnknownRace
	}
	return err
}

func mapRosterError(err error) error {
	if errors.Is(err, repositories.ErrRosterNotFound) {
		return ErrRosterNotFound
	}
	return err
}
