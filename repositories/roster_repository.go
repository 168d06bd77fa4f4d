package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/openlaps/apexfantasy/models"
)

var (
	ErrRosterNotFound = errors.New("roster not found")
	// ErrRosterConflict means the (manager, race) pair already holds a
	// roster; the unique constraint is the arbiter under concurrency.
	ErrRosterConflict = errors.New("roster already exists for this manager and race")
)

type RosterRepository interface {
	Create(ctx context.Context, exec SQLExecutor, roster *models.Roster) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Roster, error)
	GetByManagerAndRace(ctx context.Context, managerID, raceID int) (*models.Roster, error)
	ListByManager(ctx context.Context, managerID int) ([]*models.Roster, error)
	ListByRace(ctx context.Context, raceID int) ([]*models.Roster, error)
	Update(ctx context.Context, exec SQLExecutor, roster *models.Roster) error
	Delete(ctx context.Context, exec SQLExecutor, id int) error
	CountByDriver(ctx context.Context, driverID int) (int, error)
	Count(ctx context.Context) (int, error)
}

type postgresRosterRepository struct {
	db    *sql.DB
	table string
}

func NewPostgresRosterRepository(db *sql.DB, table string) RosterRepository {
	return &postgresRosterRepository{db: db, table: table}
}

func (r *postgresRosterRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const rosterColumns = `id, manager_id, race_id, driver_ids, budget_used, points_earned, created_at, updated_at`

func (r *postgresRosterRepository) Create(ctx context.Context, exec SQLExecutor, roster *models.Roster) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		INSERT INTO %s (manager_id, race_id, driver_ids, budget_used, points_earned)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`, r.table)

	err := executor.QueryRowContext(ctx, query,
		roster.ManagerID,
		roster.RaceID,
		pq.Array(intsToInt64s(roster.DriverIDs)),
		roster.BudgetUsed,
		roster.PointsEarned,
	).Scan(&roster.ID, &roster.CreatedAt, &roster.UpdatedAt)
	if err != nil {
		if errors.Is(mapConflict(err), ErrConflict) {
			return ErrRosterConflict
		}
		return fmt.Errorf("failed to create roster: %w", err)
	}
	return nil
}

func (r *postgresRosterRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Roster, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, rosterColumns, r.table)
	return r.scanOne(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRosterRepository) GetByManagerAndRace(ctx context.Context, managerID, raceID int) (*models.Roster, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE manager_id = $1 AND race_id = $2`, rosterColumns, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, managerID, raceID))
}

func (r *postgresRosterRepository) ListByManager(ctx context.Context, managerID int) ([]*models.Roster, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE manager_id = $1 ORDER BY race_id ASC`, rosterColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, managerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rosters of manager %d: %w", managerID, err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *postgresRosterRepository) ListByRace(ctx context.Context, raceID int) ([]*models.Roster, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE race_id = $1 ORDER BY points_earned DESC`, rosterColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query, raceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rosters of race %d: %w", raceID, err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *postgresRosterRepository) Update(ctx context.Context, exec SQLExecutor, roster *models.Roster) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE %s SET driver_ids = $1, budget_used = $2, points_earned = $3, updated_at = NOW()
		WHERE id = $4
		RETURNING updated_at`, r.table)
	err := executor.QueryRowContext(ctx, query,
		pq.Array(intsToInt64s(roster.DriverIDs)), roster.BudgetUsed, roster.PointsEarned, roster.ID,
	).Scan(&roster.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRosterNotFound
		}
		return fmt.Errorf("failed to update roster %d: %w", roster.ID, err)
	}
	return nil
}

func (r *postgresRosterRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete roster %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRosterNotFound)
}

// CountByDriver reports how many rosters still reference a driver; driver
// deletion is refused while the count is non-zero.
func (r *postgresRosterRepository) CountByDriver(ctx context.Context, driverID int) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE $1 = ANY(driver_ids)`, r.table)
	if err := r.db.QueryRowContext(ctx, query, driverID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rosters referencing driver %d: %w", driverID, err)
	}
	return count, nil
}

func (r *postgresRosterRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rosters: %w", err)
	}
	return count, nil
}

func (r *postgresRosterRepository) scanOne(row *sql.Row) (*models.Roster, error) {
	var roster models.Roster
	var driverIDs pq.Int64Array
	err := row.Scan(&roster.ID, &roster.ManagerID, &roster.RaceID, &driverIDs,
		&roster.BudgetUsed, &roster.PointsEarned, &roster.CreatedAt, &roster.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRosterNotFound
		}
		return nil, fmt.Errorf("failed to scan roster: %w", err)
	}
	roster.DriverIDs = int64sToInts(driverIDs)
	return &roster, nil
}

func (r *postgresRosterRepository) scanAll(rows *sql.Rows) ([]*models.Roster, error) {
	rosters := make([]*models.Roster, 0)
	for rows.Next() {
		var roster models.Roster
		var driverIDs pq.Int64Array
		if err := rows.Scan(&roster.ID, &roster.ManagerID, &roster.RaceID, &driverIDs,
			&roster.BudgetUsed, &roster.PointsEarned, &roster.CreatedAt, &roster.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan roster row: %w", err)
		}
		roster.DriverIDs = int64sToInts(driverIDs)
		rosters = append(rosters, &roster)
	}
	return rosters, rows.Err()
}

func intsToInt64s(in []int) []int64 {
	out := make([]int64, len(in))
	for i, v := range in {
		out[i] = int64(v)
	}
	return out
}

func int64sToInts(in pq.Int64Array) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}
