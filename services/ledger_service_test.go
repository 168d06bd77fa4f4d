package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlaps/apexfantasy/models"
)

func TestBudgetLedgerCost(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	a := f.addDriver("Huff", 120, models.CategoryM)
	b := f.addDriver("Muller", 95.5, models.CategoryJS)

	cost, err := ledger.Cost(context.Background(), f.season, []int{a.ID, b.ID})
	require.NoError(t, err)
	assert.InDelta(t, 215.5, cost, 1e-9)
}

func TestBudgetLedgerCostUnknownDrivers(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	a := f.addDriver("Huff", 120, models.CategoryM)

	_, err := ledger.Cost(context.Background(), f.season, []int{a.ID, 77, 78})

	var unknown *UnknownDriversError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, []int{77, 78}, unknown.IDs)
	assert.ErrorIs(t, err, ErrDriverNotFound)
}

func TestBudgetLedgerCostInvalidSeason(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)

	_, err := ledger.Cost(context.Background(), 1999, []int{1})
	assert.ErrorIs(t, err, ErrInvalidSeason)
}

func TestValidateBudget(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	manager := f.addManager("alice", 200)
	a := f.addDriver("Huff", 120, models.CategoryM)
	b := f.addDriver("Muller", 95.5, models.CategoryJS)

	check, err := ledger.ValidateBudget(context.Background(), f.season, manager.ID, []int{a.ID, b.ID})
	require.NoError(t, err)
	assert.False(t, check.WithinBudget)
	assert.InDelta(t, 15.5, check.OverBy, 1e-9)
	assert.InDelta(t, -15.5, check.Remaining, 1e-9)

	check, err = ledger.ValidateBudget(context.Background(), f.season, manager.ID, []int{a.ID})
	require.NoError(t, err)
	assert.True(t, check.WithinBudget)
	assert.InDelta(t, 80, check.Remaining, 1e-9)
	assert.Zero(t, check.OverBy)
}

func TestValidateComposition(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	a := f.addDriver("Huff", 100, models.CategoryM)
	b := f.addDriver("Muller", 90, models.CategoryJS)
	c := f.addDriver("Priaulx", 80, models.CategoryI, models.CategoryJS)

	check, err := ledger.ValidateComposition(context.Background(), f.season, []int{a.ID, b.ID}, nil)
	require.NoError(t, err)
	assert.False(t, check.Satisfied)
	assert.Equal(t, []models.Category{models.CategoryI}, check.Missing)

	check, err = ledger.ValidateComposition(context.Background(), f.season, []int{a.ID, c.ID}, nil)
	require.NoError(t, err)
	assert.True(t, check.Satisfied)
	assert.Empty(t, check.Missing)
}

func TestValidateRoster(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	manager := f.addManager("alice", 300)
	a := f.addDriver("Huff", 100, models.CategoryM)
	b := f.addDriver("Muller", 90, models.CategoryJS)
	c := f.addDriver("Priaulx", 80, models.CategoryI)

	input := RosterInput{
		ManagerID: manager.ID,
		DriverIDs: []int{a.ID, b.ID, c.ID},
	}
	validation, err := ledger.ValidateRoster(context.Background(), f.season, input)
	require.NoError(t, err)
	assert.True(t, validation.Valid)
	assert.Empty(t, validation.Errors)
	assert.InDelta(t, 270, validation.ComputedCost, 1e-9)

	// Declared cost within tolerance is accepted.
	declared := 270.005
	input.DeclaredCost = &declared
	validation, err = ledger.ValidateRoster(context.Background(), f.season, input)
	require.NoError(t, err)
	assert.True(t, validation.Valid)

	// Beyond tolerance the mismatch is reported, not raised.
	declared = 250
	validation, err = ledger.ValidateRoster(context.Background(), f.season, input)
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Len(t, validation.Errors, 1)
}

func TestValidateRosterStructuralErrors(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	manager := f.addManager("alice", 300)

	validation, err := ledger.ValidateRoster(context.Background(), f.season, RosterInput{ManagerID: manager.ID})
	require.NoError(t, err)
	assert.False(t, validation.Valid)
	assert.Equal(t, []string{ErrEmptyRoster.Error()}, validation.Errors)

	validation, err = ledger.ValidateRoster(context.Background(), f.season, RosterInput{
		ManagerID: manager.ID,
		DriverIDs: []int{1, 1},
	})
	require.NoError(t, err)
	assert.False(t, validation.Valid)

	validation, err = ledger.ValidateRoster(context.Background(), f.season, RosterInput{
		ManagerID: manager.ID,
		DriverIDs: []int{1, 2, 3, 4, 5, 6, 7},
	})
	require.NoError(t, err)
	assert.False(t, validation.Valid)
}

func TestDebitAndCreditConserveBudget(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	manager := f.addManager("alice", 300)
	a := f.addDriver("Huff", 100, models.CategoryM)
	b := f.addDriver("Muller", 90, models.CategoryJS)

	stores, err := f.resolver.Resolve(context.Background(), f.season)
	require.NoError(t, err)

	entry, err := ledger.Debit(context.Background(), stores, nil, manager.ID, []int{a.ID, b.ID})
	require.NoError(t, err)
	assert.InDelta(t, 190, entry.Amount, 1e-9)
	assert.InDelta(t, 110, entry.RemainingBudget, 1e-9)

	// Values move between debit and credit; CreditAmount restores exactly
	// the recorded amount regardless.
	require.NoError(t, f.drivers.UpdateValuation(context.Background(), nil, a.ID, 100, 140, 0))

	entry, err = ledger.CreditAmount(context.Background(), stores, nil, manager.ID, 190)
	require.NoError(t, err)
	assert.InDelta(t, 300, entry.RemainingBudget, 1e-9)
}

func TestDebitOverBudget(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	manager := f.addManager("alice", 50)
	a := f.addDriver("Huff", 100, models.CategoryM)

	stores, err := f.resolver.Resolve(context.Background(), f.season)
	require.NoError(t, err)

	_, err = ledger.Debit(context.Background(), stores, nil, manager.ID, []int{a.ID})

	var exceeded *BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.InDelta(t, 50, exceeded.Budget, 1e-9)
	assert.InDelta(t, 100, exceeded.Cost, 1e-9)
	assert.InDelta(t, 50, exceeded.OverBy, 1e-9)

	// The failed debit wrote nothing.
	stored, err := f.managers.GetByID(context.Background(), nil, manager.ID)
	require.NoError(t, err)
	assert.InDelta(t, 50, stored.Budget, 1e-9)
}

func TestRebalance(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	manager := f.addManager("alice", 110)
	a := f.addDriver("Huff", 100, models.CategoryM)
	b := f.addDriver("Muller", 90, models.CategoryJS)

	stores, err := f.resolver.Resolve(context.Background(), f.season)
	require.NoError(t, err)

	// Swap a 100 for a 90: the manager gets the 10 difference back.
	entry, newCost, err := ledger.Rebalance(context.Background(), stores, nil, manager.ID, 100, []int{b.ID})
	require.NoError(t, err)
	assert.InDelta(t, -10, entry.Amount, 1e-9)
	assert.InDelta(t, 90, newCost, 1e-9)
	assert.InDelta(t, 120, entry.RemainingBudget, 1e-9)

	// Zero delta is a no-op that still reports the current budget.
	entry, newCost, err = ledger.Rebalance(context.Background(), stores, nil, manager.ID, 100, []int{a.ID})
	require.NoError(t, err)
	assert.Zero(t, entry.Amount)
	assert.InDelta(t, 100, newCost, 1e-9)
	assert.InDelta(t, 120, entry.RemainingBudget, 1e-9)
}

func TestRebalanceUnknownManager(t *testing.T) {
	f := newFixture()
	ledger := NewBudgetLedger(f.resolver)
	a := f.addDriver("Huff", 100, models.CategoryM)

	stores, err := f.resolver.Resolve(context.Background(), f.season)
	require.NoError(t, err)

	_, _, err = ledger.Rebalance(context.Background(), stores, nil, 42, 0, []int{a.ID})
	assert.ErrorIs(t, err, ErrUnknownManager)
}

func TestValidateDriverSet(t *testing.T) {
	assert.ErrorIs(t, validateDriverSet(nil), ErrEmptyRoster)
	assert.ErrorIs(t, validateDriverSet([]int{1, 2, 2}), ErrDuplicateDrivers)
	assert.ErrorIs(t, validateDriverSet([]int{1, 2, 3, 4, 5, 6, 7}), ErrRosterTooLarge)
	assert.NoError(t, validateDriverSet([]int{1, 2, 3, 4, 5, 6}))
}
