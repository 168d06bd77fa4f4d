// Package seasons maps a season year to its isolated set of entity stores.
//
// Каждый сезон владеет собственными таблицами (drivers_<год> и т.д.);
// the registry is the only place table names are derived, always from a
// validated integer year.
package seasons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/openlaps/apexfantasy/repositories"
)

// MinYear — нижняя граница допустимых сезонов.
const MinYear = 2000

// futureWindow bounds how far ahead a season may be created.
const futureWindow = 5

var ErrInvalidSeason = errors.New("invalid season year")

// MaxYear returns the newest acceptable season year.
func MaxYear() int {
	return time.Now().Year() + futureWindow
}

// ValidateYear accepts years in [MinYear, currentYear+5].
func ValidateYear(year int) error {
	if year < MinYear || year > MaxYear() {
		return fmt.Errorf("%w: %d (accepted range %d..%d)", ErrInvalidSeason, year, MinYear, MaxYear())
	}
	return nil
}

// Stores объединяет репозитории одного сезона.
type Stores struct {
	Year     int
	Drivers  repositories.DriverRepository
	Managers repositories.ManagerRepository
	Races    repositories.RaceRepository
	Rosters  repositories.RosterRepository
	Tx       repositories.TxManager
}

// StoreResolver is what services depend on; the Registry implements it.
type StoreResolver interface {
	Resolve(ctx context.Context, year int) (*Stores, error)
	ListSeasons(ctx context.Context) ([]int, error)
}

// Registry lazily creates and caches per-season stores.
//
// The cache is populate-once and idempotent: two concurrent resolvers of
// the same year may both build a Stores value, the last write wins and the
// content is identical.
type Registry struct {
	db    *sql.DB
	mu    sync.RWMutex
	cache map[int]*Stores
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{
		db:    db,
		cache: make(map[int]*Stores),
	}
}

func (r *Registry) Resolve(ctx context.Context, year int) (*Stores, error) {
	if err := ValidateYear(year); err != nil {
		return nil, err
	}

	r.mu.RLock()
	stores, ok := r.cache[year]
	r.mu.RUnlock()
	if ok {
		return stores, nil
	}

	if err := r.ensureSchema(ctx, year); err != nil {
		return nil, fmt.Errorf("failed to ensure schema for season %d: %w", year, err)
	}

	stores = &Stores{
		Year:     year,
		Drivers:  repositories.NewPostgresDriverRepository(r.db, tableName("drivers", year)),
		Managers: repositories.NewPostgresManagerRepository(r.db, tableName("managers", year)),
		Races:    repositories.NewPostgresRaceRepository(r.db, tableName("races", year)),
		Rosters:  repositories.NewPostgresRosterRepository(r.db, tableName("rosters", year)),
		Tx:       repositories.NewSQLTxManager(r.db),
	}

	r.mu.Lock()
	r.cache[year] = stores
	r.mu.Unlock()
	return stores, nil
}

// ListSeasons enumerates years that already hold data, newest first, by
// pattern-matching the per-season driver tables.
func (r *Registry) ListSeasons(ctx context.Context) ([]int, error) {
	query := `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name LIKE 'drivers\_%'`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate season tables: %w", err)
	}
	defer rows.Close()

	years := make([]int, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		year, err := strconv.Atoi(strings.TrimPrefix(name, "drivers_"))
		if err != nil {
			continue // unrelated table that happens to match the pattern
		}
		years = append(years, year)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years, nil
}

func tableName(entity string, year int) string {
	return fmt.Sprintf("%s_%d", entity, year)
}

func (r *Registry) ensureSchema(ctx context.Context, year int) error {
	drivers := tableName("drivers", year)
	managers := tableName("managers", year)
	races := tableName("races", year)
	rosters := tableName("rosters", year)

	statements := []string{
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id SERIAL PRIMARY KEY,
				name TEXT NOT NULL,
				current_value DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (current_value >= 0),
				previous_value DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (previous_value >= 0),
				points DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (points >= 0),
				categories TEXT[] NOT NULL,
				country TEXT,
				image_key TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, drivers),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_name_lower_key ON %s (LOWER(name))`, drivers, drivers),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id SERIAL PRIMARY KEY,
				username TEXT NOT NULL,
				password_hash TEXT NOT NULL,
				role TEXT NOT NULL DEFAULT 'user',
				budget DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (budget >= 0),
				points DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (points >= 0),
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, managers),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s_username_lower_key ON %s (LOWER(username))`, managers, managers),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id SERIAL PRIMARY KEY,
				round_number INTEGER NOT NULL,
				name TEXT NOT NULL,
				submission_deadline TIMESTAMPTZ NOT NULL,
				is_locked BOOLEAN NOT NULL DEFAULT FALSE,
				is_processed BOOLEAN NOT NULL DEFAULT FALSE,
				ppm_data JSONB,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`, races),
		fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id SERIAL PRIMARY KEY,
				manager_id INTEGER NOT NULL,
				race_id INTEGER NOT NULL,
				driver_ids INTEGER[] NOT NULL,
				budget_used DOUBLE PRECISION NOT NULL CHECK (budget_used >= 0),
				points_earned DOUBLE PRECISION NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				UNIQUE (manager_id, race_id)
			)`, rosters),
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
