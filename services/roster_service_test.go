package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlaps/apexfantasy/models"
)

func newRosterService(f *fixture) *RosterService {
	return NewRosterService(f.resolver, NewBudgetLedger(f.resolver), testLogger())
}

func fullPool(f *fixture) (a, b, c *models.Driver) {
	a = f.addDriver("Huff", 100, models.CategoryM)
	b = f.addDriver("Muller", 90, models.CategoryJS)
	c = f.addDriver("Priaulx", 80, models.CategoryI)
	return a, b, c
}

func TestRosterCreate(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	actor := Actor{ManagerID: manager.ID, Role: models.RoleUser}

	roster, err := svc.Create(context.Background(), f.season, actor, RosterInput{
		ManagerID: manager.ID,
		RaceID:    race.ID,
		DriverIDs: []int{a.ID, b.ID, c.ID},
	})
	require.NoError(t, err)
	assert.InDelta(t, 270, roster.BudgetUsed, 1e-9)

	// The debit landed in the same unit as the roster write.
	stored, err := f.managers.GetByID(context.Background(), nil, manager.ID)
	require.NoError(t, err)
	assert.InDelta(t, 30, stored.Budget, 1e-9)
	assert.Equal(t, 1, f.tx.calls)
}

func TestRosterCreateDuplicate(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 600)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	actor := Actor{ManagerID: manager.ID, Role: models.RoleUser}
	input := RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID, c.ID}}

	_, err := svc.Create(context.Background(), f.season, actor, input)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), f.season, actor, input)
	assert.ErrorIs(t, err, ErrDuplicateRoster)
}

func TestRosterCreateForbiddenForOtherManager(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	other := f.addManager("bob", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))

	_, err := svc.Create(context.Background(), f.season,
		Actor{ManagerID: other.ID, Role: models.RoleUser},
		RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID, c.ID}})
	assert.ErrorIs(t, err, ErrForbiddenOperation)
}

func TestRosterCreateOverBudget(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 100)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))

	_, err := svc.Create(context.Background(), f.season,
		Actor{ManagerID: manager.ID, Role: models.RoleUser},
		RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID, c.ID}})

	var exceeded *BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.InDelta(t, 170, exceeded.OverBy, 1e-9)
}

func TestRosterCreateCompositionMissing(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a := f.addDriver("Huff", 100, models.CategoryM)
	b := f.addDriver("Muller", 90, models.CategoryJS)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))

	_, err := svc.Create(context.Background(), f.season,
		Actor{ManagerID: manager.ID, Role: models.RoleUser},
		RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID}})

	var composition *CompositionError
	require.ErrorAs(t, err, &composition)
	assert.Equal(t, []models.Category{models.CategoryI}, composition.Missing)
}

func TestRosterCreateLockedRace(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	require.NoError(t, f.races.SetLocked(context.Background(), race.ID, true))
	input := RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID, c.ID}}

	_, err := svc.Create(context.Background(), f.season,
		Actor{ManagerID: manager.ID, Role: models.RoleUser}, input)
	assert.ErrorIs(t, err, ErrRosterLocked)

	// Admins submit past the lock.
	_, err = svc.Create(context.Background(), f.season,
		Actor{ManagerID: 99, Role: models.RoleAdmin}, input)
	assert.NoError(t, err)
}

func TestRosterCreateDeadlinePassed(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(-time.Minute))

	_, err := svc.Create(context.Background(), f.season,
		Actor{ManagerID: manager.ID, Role: models.RoleUser},
		RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID, c.ID}})
	assert.ErrorIs(t, err, ErrRosterLocked)
}

func TestRosterUpdateRebalances(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	cheap := f.addDriver("Coronel", 40, models.CategoryI)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	actor := Actor{ManagerID: manager.ID, Role: models.RoleUser}

	roster, err := svc.Create(context.Background(), f.season, actor, RosterInput{
		ManagerID: manager.ID,
		RaceID:    race.ID,
		DriverIDs: []int{a.ID, b.ID, c.ID},
	})
	require.NoError(t, err)

	// 270 held; swapping the 80 for a 40 releases 40 back.
	updated, err := svc.Update(context.Background(), f.season, actor, roster.ID,
		[]int{a.ID, b.ID, cheap.ID}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 230, updated.BudgetUsed, 1e-9)

	stored, err := f.managers.GetByID(context.Background(), nil, manager.ID)
	require.NoError(t, err)
	assert.InDelta(t, 70, stored.Budget, 1e-9)
}

func TestRosterUpdateOwnership(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	other := f.addManager("bob", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))

	roster, err := svc.Create(context.Background(), f.season,
		Actor{ManagerID: manager.ID, Role: models.RoleUser},
		RosterInput{ManagerID: manager.ID, RaceID: race.ID, DriverIDs: []int{a.ID, b.ID, c.ID}})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), f.season,
		Actor{ManagerID: other.ID, Role: models.RoleUser},
		roster.ID, []int{a.ID, b.ID, c.ID}, nil)
	assert.ErrorIs(t, err, ErrRosterOwnershipInvalid)
}

func TestRosterUpdateDeclaredCostMismatch(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	actor := Actor{ManagerID: manager.ID, Role: models.RoleUser}

	roster, err := svc.Create(context.Background(), f.season, actor, RosterInput{
		ManagerID: manager.ID,
		RaceID:    race.ID,
		DriverIDs: []int{a.ID, b.ID, c.ID},
	})
	require.NoError(t, err)

	declared := 150.0
	_, err = svc.Update(context.Background(), f.season, actor, roster.ID,
		[]int{a.ID, b.ID, c.ID}, &declared)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestRosterDeleteRestoresBudget(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	actor := Actor{ManagerID: manager.ID, Role: models.RoleUser}

	roster, err := svc.Create(context.Background(), f.season, actor, RosterInput{
		ManagerID: manager.ID,
		RaceID:    race.ID,
		DriverIDs: []int{a.ID, b.ID, c.ID},
	})
	require.NoError(t, err)

	// Re-price a driver between create and delete: the refund must equal
	// the original debit, not the drivers' new cost.
	require.NoError(t, f.drivers.UpdateValuation(context.Background(), nil, a.ID, 100, 180, 0))

	require.NoError(t, svc.Delete(context.Background(), f.season, actor, roster.ID))

	stored, err := f.managers.GetByID(context.Background(), nil, manager.ID)
	require.NoError(t, err)
	assert.InDelta(t, 300, stored.Budget, 1e-9)

	_, err = f.rosters.GetByID(context.Background(), nil, roster.ID)
	assert.Error(t, err)
}

func TestRosterGetOwn(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)
	a, b, c := fullPool(f)
	manager := f.addManager("alice", 300)
	race := f.addRace(1, "Monza", time.Now().Add(time.Hour))
	actor := Actor{ManagerID: manager.ID, Role: models.RoleUser}

	created, err := svc.Create(context.Background(), f.season, actor, RosterInput{
		ManagerID: manager.ID,
		RaceID:    race.ID,
		DriverIDs: []int{a.ID, b.ID, c.ID},
	})
	require.NoError(t, err)

	roster, err := svc.GetOwn(context.Background(), f.season, actor, race.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, roster.ID)
	assert.Len(t, roster.Drivers, 3)

	_, err = svc.GetOwn(context.Background(), f.season, Actor{ManagerID: 99, Role: models.RoleUser}, race.ID)
	assert.ErrorIs(t, err, ErrRosterNotFound)
}

func TestRosterListByRaceUnknownRace(t *testing.T) {
	f := newFixture()
	svc := newRosterService(f)

	_, err := svc.ListByRace(context.Background(), f.season, 42)
	assert.ErrorIs(t, err, ErrUnknownRace)
}
