package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openlaps/apexfantasy/models"
	"github.com/openlaps/apexfantasy/repositories"
	"github.com/openlaps/apexfantasy/seasons"
)

// In-memory repository fakes. They mirror the semantics the postgres
// implementations get from constraints: unique (manager, race) rosters,
// budget guard refusing negative balances, monotonic processed flag.

type fakeTxManager struct {
	calls int
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	m.calls++
	return fn(nil)
}

type fakeDriverRepo struct {
	nextID  int
	drivers map[int]*models.Driver
}

func newFakeDriverRepo() *fakeDriverRepo {
	return &fakeDriverRepo{nextID: 1, drivers: make(map[int]*models.Driver)}
}

func (r *fakeDriverRepo) Create(_ context.Context, _ repositories.SQLExecutor, driver *models.Driver) error {
	for _, d := range r.drivers {
		if d.Name == driver.Name {
			return repositories.ErrDriverNameConflict
		}
	}
	driver.ID = r.nextID
	driver.CreatedAt = time.Now()
	r.nextID++
	stored := *driver
	r.drivers[driver.ID] = &stored
	return nil
}

func (r *fakeDriverRepo) GetByID(_ context.Context, id int) (*models.Driver, error) {
	d, ok := r.drivers[id]
	if !ok {
		return nil, repositories.ErrDriverNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeDriverRepo) GetByIDs(_ context.Context, _ repositories.SQLExecutor, ids []int) ([]*models.Driver, error) {
	out := make([]*models.Driver, 0, len(ids))
	for _, id := range ids {
		if d, ok := r.drivers[id]; ok {
			copied := *d
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeDriverRepo) List(_ context.Context) ([]*models.Driver, error) {
	return r.sortedByID(), nil
}

func (r *fakeDriverRepo) ListForUpdate(_ context.Context, _ repositories.SQLExecutor) ([]*models.Driver, error) {
	return r.sortedByID(), nil
}

func (r *fakeDriverRepo) sortedByID() []*models.Driver {
	out := make([]*models.Driver, 0, len(r.drivers))
	for _, d := range r.drivers {
		copied := *d
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *fakeDriverRepo) Update(_ context.Context, _ repositories.SQLExecutor, driver *models.Driver) error {
	if _, ok := r.drivers[driver.ID]; !ok {
		return repositories.ErrDriverNotFound
	}
	stored := *driver
	r.drivers[driver.ID] = &stored
	return nil
}

func (r *fakeDriverRepo) UpdateValuation(_ context.Context, _ repositories.SQLExecutor, id int, previousValue, currentValue, points float64) error {
	d, ok := r.drivers[id]
	if !ok {
		return repositories.ErrDriverNotFound
	}
	d.PreviousValue = previousValue
	d.CurrentValue = currentValue
	d.Points = points
	return nil
}

func (r *fakeDriverRepo) UpdateImageKey(_ context.Context, id int, key *string) error {
	d, ok := r.drivers[id]
	if !ok {
		return repositories.ErrDriverNotFound
	}
	d.ImageKey = key
	return nil
}

func (r *fakeDriverRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.drivers[id]; !ok {
		return repositories.ErrDriverNotFound
	}
	delete(r.drivers, id)
	return nil
}

func (r *fakeDriverRepo) Count(_ context.Context) (int, error) {
	return len(r.drivers), nil
}

func (r *fakeDriverRepo) TotalValue(_ context.Context) (float64, error) {
	var total float64
	for _, d := range r.drivers {
		total += d.CurrentValue
	}
	return total, nil
}

type fakeManagerRepo struct {
	nextID   int
	managers map[int]*models.Manager
}

func newFakeManagerRepo() *fakeManagerRepo {
	return &fakeManagerRepo{nextID: 1, managers: make(map[int]*models.Manager)}
}

func (r *fakeManagerRepo) Create(_ context.Context, _ repositories.SQLExecutor, manager *models.Manager) error {
	for _, m := range r.managers {
		if m.Username == manager.Username {
			return repositories.ErrManagerUsernameConflict
		}
	}
	manager.ID = r.nextID
	manager.CreatedAt = time.Now()
	r.nextID++
	stored := *manager
	r.managers[manager.ID] = &stored
	return nil
}

func (r *fakeManagerRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Manager, error) {
	m, ok := r.managers[id]
	if !ok {
		return nil, repositories.ErrManagerNotFound
	}
	copied := *m
	return &copied, nil
}

func (r *fakeManagerRepo) GetByUsername(_ context.Context, username string) (*models.Manager, error) {
	for _, m := range r.managers {
		if m.Username == username {
			copied := *m
			return &copied, nil
		}
	}
	return nil, repositories.ErrManagerNotFound
}

func (r *fakeManagerRepo) List(_ context.Context) ([]*models.Manager, error) {
	out := make([]*models.Manager, 0, len(r.managers))
	for _, m := range r.managers {
		copied := *m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Points > out[j].Points })
	return out, nil
}

func (r *fakeManagerRepo) Update(_ context.Context, _ repositories.SQLExecutor, manager *models.Manager) error {
	if _, ok := r.managers[manager.ID]; !ok {
		return repositories.ErrManagerNotFound
	}
	stored := *manager
	r.managers[manager.ID] = &stored
	return nil
}

func (r *fakeManagerRepo) AdjustBudget(_ context.Context, _ repositories.SQLExecutor, id int, delta float64) (float64, error) {
	m, ok := r.managers[id]
	if !ok {
		return 0, repositories.ErrManagerNotFound
	}
	if m.Budget+delta < 0 {
		return 0, repositories.ErrInsufficientBudget
	}
	m.Budget += delta
	return m.Budget, nil
}

func (r *fakeManagerRepo) AddPoints(_ context.Context, _ repositories.SQLExecutor, id int, points float64) error {
	m, ok := r.managers[id]
	if !ok {
		return repositories.ErrManagerNotFound
	}
	m.Points += points
	return nil
}

func (r *fakeManagerRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.managers[id]; !ok {
		return repositories.ErrManagerNotFound
	}
	delete(r.managers, id)
	return nil
}

func (r *fakeManagerRepo) Count(_ context.Context) (int, error) {
	return len(r.managers), nil
}

func (r *fakeManagerRepo) TotalBudget(_ context.Context) (float64, error) {
	var total float64
	for _, m := range r.managers {
		total += m.Budget
	}
	return total, nil
}

type fakeRaceRepo struct {
	nextID int
	races  map[int]*models.Race
}

func newFakeRaceRepo() *fakeRaceRepo {
	return &fakeRaceRepo{nextID: 1, races: make(map[int]*models.Race)}
}

func (r *fakeRaceRepo) Create(_ context.Context, _ repositories.SQLExecutor, race *models.Race) error {
	race.ID = r.nextID
	race.CreatedAt = time.Now()
	r.nextID++
	stored := *race
	r.races[race.ID] = &stored
	return nil
}

func (r *fakeRaceRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Race, error) {
	race, ok := r.races[id]
	if !ok {
		return nil, repositories.ErrRaceNotFound
	}
	copied := *race
	return &copied, nil
}

func (r *fakeRaceRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Race, error) {
	return r.GetByID(ctx, exec, id)
}

func (r *fakeRaceRepo) List(_ context.Context) ([]*models.Race, error) {
	out := make([]*models.Race, 0, len(r.races))
	for _, race := range r.races {
		copied := *race
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber < out[j].RoundNumber })
	return out, nil
}

func (r *fakeRaceRepo) ListProcessed(_ context.Context, limit int) ([]*models.Race, error) {
	out := make([]*models.Race, 0)
	for _, race := range r.races {
		if race.IsProcessed {
			copied := *race
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoundNumber > out[j].RoundNumber })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRaceRepo) Update(_ context.Context, _ repositories.SQLExecutor, race *models.Race) error {
	stored, ok := r.races[race.ID]
	if !ok {
		return repositories.ErrRaceNotFound
	}
	stored.RoundNumber = race.RoundNumber
	stored.Name = race.Name
	stored.SubmissionDeadline = race.SubmissionDeadline
	stored.IsLocked = race.IsLocked
	return nil
}

func (r *fakeRaceRepo) SetLocked(_ context.Context, id int, locked bool) error {
	race, ok := r.races[id]
	if !ok {
		return repositories.ErrRaceNotFound
	}
	race.IsLocked = locked
	return nil
}

func (r *fakeRaceRepo) MarkProcessed(_ context.Context, _ repositories.SQLExecutor, id int, data *models.PPMData) error {
	race, ok := r.races[id]
	if !ok {
		return repositories.ErrRaceNotFound
	}
	if race.IsProcessed {
		return repositories.ErrRaceAlreadyProcessed
	}
	race.IsProcessed = true
	race.PPMData = data
	return nil
}

func (r *fakeRaceRepo) ResetProcessing(_ context.Context, _ repositories.SQLExecutor, id int) error {
	race, ok := r.races[id]
	if !ok {
		return repositories.ErrRaceNotFound
	}
	race.IsProcessed = false
	race.IsLocked = false
	race.PPMData = nil
	return nil
}

func (r *fakeRaceRepo) Delete(_ context.Context, id int) error {
	if _, ok := r.races[id]; !ok {
		return repositories.ErrRaceNotFound
	}
	delete(r.races, id)
	return nil
}

func (r *fakeRaceRepo) Count(_ context.Context) (int, error) {
	return len(r.races), nil
}

type fakeRosterRepo struct {
	nextID  int
	rosters map[int]*models.Roster
}

func newFakeRosterRepo() *fakeRosterRepo {
	return &fakeRosterRepo{nextID: 1, rosters: make(map[int]*models.Roster)}
}

func (r *fakeRosterRepo) Create(_ context.Context, _ repositories.SQLExecutor, roster *models.Roster) error {
	for _, existing := range r.rosters {
		if existing.ManagerID == roster.ManagerID && existing.RaceID == roster.RaceID {
			return repositories.ErrRosterConflict
		}
	}
	roster.ID = r.nextID
	roster.CreatedAt = time.Now()
	roster.UpdatedAt = roster.CreatedAt
	r.nextID++
	stored := *roster
	r.rosters[roster.ID] = &stored
	return nil
}

func (r *fakeRosterRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Roster, error) {
	roster, ok := r.rosters[id]
	if !ok {
		return nil, repositories.ErrRosterNotFound
	}
	copied := *roster
	return &copied, nil
}

func (r *fakeRosterRepo) GetByManagerAndRace(_ context.Context, managerID, raceID int) (*models.Roster, error) {
	for _, roster := range r.rosters {
		if roster.ManagerID == managerID && roster.RaceID == raceID {
			copied := *roster
			return &copied, nil
		}
	}
	return nil, repositories.ErrRosterNotFound
}

func (r *fakeRosterRepo) ListByManager(_ context.Context, managerID int) ([]*models.Roster, error) {
	out := make([]*models.Roster, 0)
	for _, roster := range r.rosters {
		if roster.ManagerID == managerID {
			copied := *roster
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RaceID < out[j].RaceID })
	return out, nil
}

func (r *fakeRosterRepo) ListByRace(_ context.Context, raceID int) ([]*models.Roster, error) {
	out := make([]*models.Roster, 0)
	for _, roster := range r.rosters {
		if roster.RaceID == raceID {
			copied := *roster
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PointsEarned > out[j].PointsEarned })
	return out, nil
}

func (r *fakeRosterRepo) Update(_ context.Context, _ repositories.SQLExecutor, roster *models.Roster) error {
	if _, ok := r.rosters[roster.ID]; !ok {
		return repositories.ErrRosterNotFound
	}
	roster.UpdatedAt = time.Now()
	stored := *roster
	r.rosters[roster.ID] = &stored
	return nil
}

func (r *fakeRosterRepo) Delete(_ context.Context, _ repositories.SQLExecutor, id int) error {
	if _, ok := r.rosters[id]; !ok {
		return repositories.ErrRosterNotFound
	}
	delete(r.rosters, id)
	return nil
}

func (r *fakeRosterRepo) CountByDriver(_ context.Context, driverID int) (int, error) {
	count := 0
	for _, roster := range r.rosters {
		for _, id := range roster.DriverIDs {
			if id == driverID {
				count++
				break
			}
		}
	}
	return count, nil
}

func (r *fakeRosterRepo) Count(_ context.Context) (int, error) {
	return len(r.rosters), nil
}

// fakeResolver serves one pre-built Stores per year.
type fakeResolver struct {
	stores map[int]*seasons.Stores
}

func (f *fakeResolver) Resolve(_ context.Context, year int) (*seasons.Stores, error) {
	if err := seasons.ValidateYear(year); err != nil {
		return nil, err
	}
	stores, ok := f.stores[year]
	if !ok {
		return nil, fmt.Errorf("season %d not seeded", year)
	}
	return stores, nil
}

func (f *fakeResolver) ListSeasons(_ context.Context) ([]int, error) {
	years := make([]int, 0, len(f.stores))
	for y := range f.stores {
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

type fixture struct {
	resolver *fakeResolver
	drivers  *fakeDriverRepo
	managers *fakeManagerRepo
	races    *fakeRaceRepo
	rosters  *fakeRosterRepo
	tx       *fakeTxManager
	season   int
}

func newFixture() *fixture {
	f := &fixture{
		drivers:  newFakeDriverRepo(),
		managers: newFakeManagerRepo(),
		races:    newFakeRaceRepo(),
		rosters:  newFakeRosterRepo(),
		tx:       &fakeTxManager{},
		season:   time.Now().Year(),
	}
	f.resolver = &fakeResolver{stores: map[int]*seasons.Stores{
		f.season: {
			Year:     f.season,
			Drivers:  f.drivers,
			Managers: f.managers,
			Races:    f.races,
			Rosters:  f.rosters,
			Tx:       f.tx,
		},
	}}
	return f
}

func (f *fixture) addDriver(name string, value float64, categories ...models.Category) *models.Driver {
	d := &models.Driver{Name: name, CurrentValue: value, PreviousValue: value, Categories: categories}
	if err := f.drivers.Create(context.Background(), nil, d); err != nil {
		panic(err)
	}
	return d
}

func (f *fixture) addManager(username string, budget float64) *models.Manager {
	m := &models.Manager{Username: username, Role: models.RoleUser, Budget: budget}
	if err := f.managers.Create(context.Background(), nil, m); err != nil {
		panic(err)
	}
	return m
}

func (f *fixture) addRace(round int, name string, deadline time.Time) *models.Race {
	r := &models.Race{RoundNumber: round, Name: name, SubmissionDeadline: deadline}
	if err := f.races.Create(context.Background(), nil, r); err != nil {
		panic(err)
	}
	return r
}
