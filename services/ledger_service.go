package services

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/repositories"
	"github.com/openlaps/apexfantasy/seasons"
)

// CostTolerance — допустимое расхождение между заявленной и расчётной
// стоимостью состава.
const CostTolerance = 0.01

// BudgetLedger owns every budget-affecting computation and mutation.
//
// The conservation law it protects: a manager's budget plus the budgetUsed
// of all their rosters equals the season-opening budget at all times. The
// mutating methods (Debit, Credit, Rebalance) therefore only ever run
// inside the same transaction as the roster write that motivated them.
type BudgetLedger struct {
	resolver seasons.StoreResolver
}

func NewBudgetLedger(resolver seasons.StoreResolver) *BudgetLedger {
	return &BudgetLedger{resolver: resolver}
}

// BudgetCheck — результат проверки бюджета менеджера.
type BudgetCheck struct {
	WithinBudget  bool    `json:"within_budget"`
	ManagerBudget float64 `json:"manager_budget"`
	Cost          float64 `json:"cost"`
	Remaining     float64 `json:"remaining"`
	OverBy        float64 `json:"over_by"`
}

// CompositionCheck — результат проверки покрытия обязательных классов.
type CompositionCheck struct {
	Satisfied bool              `json:"satisfied"`
	Present   []models.Category `json:"present"`
	Missing   []models.Category `json:"missing"`
}

// RosterValidation composes the structural, budget and composition checks
// for one candidate roster.
type RosterValidation struct {
	Valid        bool              `json:"valid"`
	Errors       []string          `json:"errors"`
	Budget       *BudgetCheck      `json:"budget,omitempty"`
	Composition  *CompositionCheck `json:"composition,omitempty"`
	ComputedCost float64           `json:"computed_cost"`
}

// RosterInput — кандидат состава, прошедший структурную валидацию формы.
type RosterInput struct {
	ManagerID    int      `json:"manager_id"`
	RaceID       int      `json:"race_id"`
	DriverIDs    []int    `json:"driver_ids"`
	DeclaredCost *float64 `json:"declared_cost,omitempty"`
}

// LedgerEntry reports the budget effect of a single mutation.
type LedgerEntry struct {
	Amount          float64 `json:"amount"`
	RemainingBudget float64 `json:"remaining_budget"`
}

// Cost sums the current values of the given drivers within a season.
// Unresolvable ids fail with an UnknownDriversError listing every miss.
func (l *BudgetLedger) Cost(ctx context.Context, season int, driverIDs []int) (float64, error) {
	stores, err := l.resolver.Resolve(ctx, season)
	if err != nil {
		return 0, mapSeasonError(err)
	}
	return l.costWithin(ctx, stores, nil, driverIDs)
}

func (l *BudgetLedger) costWithin(ctx context.Context, stores *seasons.Stores, exec repositories.SQLExecutor, driverIDs []int) (float64, error) {
	drivers, err := stores.Drivers.GetByIDs(ctx, exec, driverIDs)
	if err != nil {
		return 0, err
	}
	if missing := missingIDs(driverIDs, drivers); len(missing) > 0 {
		return 0, &UnknownDriversError{IDs: missing}
	}
	var total float64
	for _, d := range drivers {
		total += d.CurrentValue
	}
	return total, nil
}

// ValidateBudget checks the cost of a selection against a manager's
// remaining budget without mutating anything.
func (l *BudgetLedger) ValidateBudget(ctx context.Context, season, managerID int, driverIDs []int) (*BudgetCheck, error) {
	stores, err := l.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	manager, err := stores.Managers.GetByID(ctx, nil, managerID)
	if err != nil {
		return nil, mapManagerError(err)
	}
	cost, err := l.costWithin(ctx, stores, nil, driverIDs)
	if err != nil {
		return nil, err
	}
	check := &BudgetCheck{
		ManagerBudget: manager.Budget,
		Cost:          cost,
		Remaining:     manager.Budget - cost,
	}
	if cost > manager.Budget {
		check.OverBy = cost - manager.Budget
	} else {
		check.WithinBudget = true
	}
	return check, nil
}

// ValidateComposition verifies that the union of the selected drivers'
// categories covers every required tag. A nil required set means the
// default {M, JS, I}.
func (l *BudgetLedger) ValidateComposition(ctx context.Context, season int, driverIDs []int, required []models.Category) (*CompositionCheck, error) {
	stores, err := l.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	drivers, err := stores.Drivers.GetByIDs(ctx, nil, driverIDs)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(driverIDs, drivers); len(missing) > 0 {
		return nil, &UnknownDriversError{IDs: missing}
	}
	return checkComposition(drivers, required), nil
}

func checkComposition(drivers []*models.Driver, required []models.Category) *CompositionCheck {
	if required == nil {
		required = models.RequiredCategories
	}
	covered := make(map[models.Category]bool)
	for _, d := range drivers {
		for _, c := range d.Categories {
			covered[c] = true
		}
	}
	check := &CompositionCheck{
		Present: []models.Category{},
		Missing: []models.Category{},
	}
	for _, c := range required {
		if covered[c] {
			check.Present = append(check.Present, c)
		} else {
			check.Missing = append(check.Missing, c)
		}
	}
	check.Satisfied = len(check.Missing) == 0
	return check
}

// ValidateRoster runs every pre-write check for a candidate roster. A
// declared cost that disagrees with the computed cost beyond CostTolerance
// makes the result invalid but is reported, not raised.
func (l *BudgetLedger) ValidateRoster(ctx context.Context, season int, input RosterInput) (*RosterValidation, error) {
	validation := &RosterValidation{Errors: []string{}}

	if err := validateDriverSet(input.DriverIDs); err != nil {
		validation.Errors = append(validation.Errors, err.Error())
		return validation, nil
	}

	stores, err := l.resolver.Resolve(ctx, season)
	if err != nil {
		return nil, mapSeasonError(err)
	}
	manager, err := stores.Managers.GetByID(ctx, nil, input.ManagerID)
	if err != nil {
		return nil, mapManagerError(err)
	}
	drivers, err := stores.Drivers.GetByIDs(ctx, nil, input.DriverIDs)
	if err != nil {
		return nil, err
	}
	if missing := missingIDs(input.DriverIDs, drivers); len(missing) > 0 {
		return nil, &UnknownDriversError{IDs: missing}
	}

	var cost float64
	for _, d := range drivers {
		cost += d.CurrentValue
	}
	validation.ComputedCost = cost

	budget := &BudgetCheck{
		ManagerBudget: manager.Budget,
		Cost:          cost,
		Remaining:     manager.Budget - cost,
	}
	if cost > manager.Budget {
		budget.OverBy = cost - manager.Budget
		validation.Errors = append(validation.Errors,
			(&BudgetExceededError{Budget: manager.Budget, Cost: cost, OverBy: budget.OverBy}).Error())
	} else {
		budget.WithinBudget = true
	}
	validation.Budget = budget

	composition := checkComposition(drivers, nil)
	if !composition.Satisfied {
		validation.Errors = append(validation.Errors,
			(&CompositionError{Missing: composition.Missing}).Error())
	}
	validation.Composition = composition

	if input.DeclaredCost != nil && math.Abs(*input.DeclaredCost-cost) > CostTolerance {
		validation.Errors = append(validation.Errors,
			fmt.Sprintf("declared cost %.2f does not match computed cost %.2f", *input.DeclaredCost, cost))
	}

	validation.Valid = len(validation.Errors) == 0
	return validation, nil
}

// Debit decrements the manager's budget by the cost of the selection
// inside the caller's transaction.
func (l *BudgetLedger) Debit(ctx context.Context, stores *seasons.Stores, exec repositories.SQLExecutor, managerID int, driverIDs []int) (*LedgerEntry, error) {
	cost, err := l.costWithin(ctx, stores, exec, driverIDs)
	if err != nil {
		return nil, err
	}
	remaining, err := l.adjust(ctx, stores, exec, managerID, -cost)
	if err != nil {
		return nil, err
	}
	return &LedgerEntry{Amount: cost, RemainingBudget: remaining}, nil
}

// Credit restores the cost of the selection to the manager's budget,
// reversing a previous debit on roster deletion.
func (l *BudgetLedger) Credit(ctx context.Context, stores *seasons.Stores, exec repositories.SQLExecutor, managerID int, driverIDs []int) (*LedgerEntry, error) {
	cost, err := l.costWithin(ctx, stores, exec, driverIDs)
	if err != nil {
		return nil, err
	}
	remaining, err := l.adjust(ctx, stores, exec, managerID, cost)
	if err != nil {
		return nil, err
	}
	return &LedgerEntry{Amount: cost, RemainingBudget: remaining}, nil
}

// CreditAmount restores a previously recorded amount (the roster's
// budgetUsed) rather than a freshly computed cost. Деление важно: после
// переоценки стоимость гонщиков меняется, а возврат обязан быть равен
// списанию, иначе нарушается закон сохранения бюджета.
func (l *BudgetLedger) CreditAmount(ctx context.Context, stores *seasons.Stores, exec repositories.SQLExecutor, managerID int, amount float64) (*LedgerEntry, error) {
	remaining, err := l.adjust(ctx, stores, exec, managerID, amount)
	if err != nil {
		return nil, err
	}
	return &LedgerEntry{Amount: amount, RemainingBudget: remaining}, nil
}

// Rebalance applies a single signed adjustment equal to
// cost(new) − cost(old). A zero delta writes nothing and still succeeds.
func (l *BudgetLedger) Rebalance(ctx context.Context, stores *seasons.Stores, exec repositories.SQLExecutor, managerID int, oldCost float64, newDriverIDs []int) (*LedgerEntry, float64, error) {
	newCost, err := l.costWithin(ctx, stores, exec, newDriverIDs)
	if err != nil {
		return nil, 0, err
	}
	delta := newCost - oldCost
	if delta == 0 {
		manager, err := stores.Managers.GetByID(ctx, exec, managerID)
		if err != nil {
			return nil, 0, mapManagerError(err)
		}
		return &LedgerEntry{Amount: 0, RemainingBudget: manager.Budget}, newCost, nil
	}
	remaining, err := l.adjust(ctx, stores, exec, managerID, -delta)
	if err != nil {
		return nil, 0, err
	}
	return &LedgerEntry{Amount: delta, RemainingBudget: remaining}, newCost, nil
}

func (l *BudgetLedger) adjust(ctx context.Context, stores *seasons.Stores, exec repositories.SQLExecutor, managerID int, delta float64) (float64, error) {
	remaining, err := stores.Managers.AdjustBudget(ctx, exec, managerID, delta)
	if err != nil {
		if errors.Is(err, repositories.ErrInsufficientBudget) {
			manager, lookupErr := stores.Managers.GetByID(ctx, exec, managerID)
			if lookupErr != nil {
				return 0, mapManagerError(lookupErr)
			}
			return 0, &BudgetExceededError{
				Budget: manager.Budget,
				Cost:   -delta,
				OverBy: -delta - manager.Budget,
			}
		}
		return 0, mapManagerError(err)
	}
	return remaining, nil
}

func validateDriverSet(driverIDs []int) error {
	if len(driverIDs) == 0 {
		return ErrEmptyRoster
	}
	if len(driverIDs) > models.MaxRosterSize {
		return fmt.Errorf("%w: %d drivers, maximum is %d", ErrRosterTooLarge, len(driverIDs), models.MaxRosterSize)
	}
	seen := make(map[int]bool, len(driverIDs))
	for _, id := range driverIDs {
		if seen[id] {
			return fmt.Errorf("%w: driver %d", ErrDuplicateDrivers, id)
		}
		seen[id] = true
	}
	return nil
}

func missingIDs(requested []int, found []*models.Driver) []int {
	present := make(map[int]bool, len(found))
	for _, d := range found {
		present[d.ID] = true
	}
	missing := make([]int, 0)
	for _, id := range requested {
		if !present[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

func mapSeasonError(err error) error {
	if errors.Is(err, seasons.ErrInvalidSeason) {
		return fmt.Errorf("%w: %v", ErrInvalidSeason, err)
	}
	return err
}

func mapManagerError(err error) error {
	if errors.Is(err, repositories.ErrManagerNotFound) {
		return ErrUnknownManager
	}
	return err
}
