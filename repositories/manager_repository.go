package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openlaps/apexfantasy/models"
)

var (
	ErrManagerNotFound         = errors.New("manager not found")
	ErrManagerUsernameConflict = errors.New("username is already in use")
	ErrInsufficientBudget      = errors.New("manager budget is insufficient")
)

type ManagerRepository interface {
	Create(ctx context.Context, exec SQLExecutor, manager *models.Manager) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Manager, error)
	GetByUsername(ctx context.Context, username string) (*models.Manager, error)
	List(ctx context.Context) ([]*models.Manager, error)
	Update(ctx context.Context, exec SQLExecutor, manager *models.Manager) error
	// AdjustBudget applies a signed delta to the manager's budget and
	// returns the remaining amount. A negative resulting budget is refused
	// with ErrInsufficientBudget and writes nothing.
	AdjustBudget(ctx context.Context, exec SQLExecutor, id int, delta float64) (float64, error)
	AddPoints(ctx context.Context, exec SQLExecutor, id int, points float64) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
	TotalBudget(ctx context.Context) (float64, error)
}

type postgresManagerRepository struct {
	db    *sql.DB
	table string
}

func NewPostgresManagerRepository(db *sql.DB, table string) ManagerRepository {
	return &postgresManagerRepository{db: db, table: table}
}

func (r *postgresManagerRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresManagerRepository) Create(ctx context.Context, exec SQLExecutor, manager *models.Manager) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		INSERT INTO %s (username, password_hash, role, budget, points)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`, r.table)

	err := executor.QueryRowContext(ctx, query,
		manager.Username,
		manager.PasswordHash,
		manager.Role,
		manager.Budget,
		manager.Points,
	).Scan(&manager.ID, &manager.CreatedAt)
	if err != nil {
		if errors.Is(mapConflict(err), ErrConflict) {
			return ErrManagerUsernameConflict
		}
		return fmt.Errorf("failed to create manager: %w", err)
	}
	return nil
}

func (r *postgresManagerRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Manager, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, role, budget, points, created_at
		FROM %s WHERE id = $1`, r.table)
	return r.scanOne(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresManagerRepository) GetByUsername(ctx context.Context, username string) (*models.Manager, error) {
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, role, budget, points, created_at
		FROM %s WHERE LOWER(username) = LOWER($1)`, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, username))
}

func (r *postgresManagerRepository) List(ctx context.Context) ([]*models.Manager, error) {
	query := fmt.Sprintf(`
		SELECT id, username, password_hash, role, budget, points, created_at
		FROM %s ORDER BY points DESC, username ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}
	defer rows.Close()

	managers := make([]*models.Manager, 0)
	for rows.Next() {
		var m models.Manager
		if err := rows.Scan(&m.ID, &m.Username, &m.PasswordHash, &m.Role, &m.Budget, &m.Points, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan manager row: %w", err)
		}
		managers = append(managers, &m)
	}
	return managers, rows.Err()
}

func (r *postgresManagerRepository) Update(ctx context.Context, exec SQLExecutor, manager *models.Manager) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE %s SET username = $1, password_hash = $2, role = $3, budget = $4, points = $5
		WHERE id = $6`, r.table)
	result, err := executor.ExecContext(ctx, query,
		manager.Username, manager.PasswordHash, manager.Role, manager.Budget, manager.Points, manager.ID)
	if err != nil {
		if errors.Is(mapConflict(err), ErrConflict) {
			return ErrManagerUsernameConflict
		}
		return fmt.Errorf("failed to update manager %d: %w", manager.ID, err)
	}
	return checkAffectedRows(result, ErrManagerNotFound)
}

func (r *postgresManagerRepository) AdjustBudget(ctx context.Context, exec SQLExecutor, id int, delta float64) (float64, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE %s SET budget = budget + $1
		WHERE id = $2 AND budget + $1 >= 0
		RETURNING budget`, r.table)

	var remaining float64
	err := executor.QueryRowContext(ctx, query, delta, id).Scan(&remaining)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Either the manager is gone or the debit would go negative;
			// a second lookup disambiguates for the caller.
			if _, lookupErr := r.GetByID(ctx, exec, id); lookupErr != nil {
				return 0, lookupErr
			}
			return 0, ErrInsufficientBudget
		}
		return 0, fmt.Errorf("failed to adjust budget of manager %d: %w", id, err)
	}
	return remaining, nil
}

func (r *postgresManagerRepository) AddPoints(ctx context.Context, exec SQLExecutor, id int, points float64) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`UPDATE %s SET points = points + $1 WHERE id = $2`, r.table)
	result, err := executor.ExecContext(ctx, query, points, id)
	if err != nil {
		return fmt.Errorf("failed to add points to manager %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrManagerNotFound)
}

func (r *postgresManagerRepository) Delete(ctx context.Context, id int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete manager %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrManagerNotFound)
}

func (r *postgresManagerRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count managers: %w", err)
	}
	return count, nil
}

func (r *postgresManagerRepository) TotalBudget(ctx context.Context) (float64, error) {
	var total float64
	query := fmt.Sprintf(`SELECT COALESCE(SUM(budget), 0) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum manager budgets: %w", err)
	}
	return total, nil
}

func (r *postgresManagerRepository) scanOne(row *sql.Row) (*models.Manager, error) {
	var m models.Manager
	err := row.Scan(&m.ID, &m.Username, &m.PasswordHash, &m.Role, &m.Budget, &m.Points, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrManagerNotFound
		}
		return nil, fmt.Errorf("failed to scan manager: %w", err)
	}
	return &m, nil
}
