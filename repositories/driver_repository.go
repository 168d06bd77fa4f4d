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
	ErrDriverNotFound     = errors.New("driver not found")
	ErrDriverNameConflict = errors.New("driver name is already in use")
)

type DriverRepository interface {
	Create(ctx context.Context, exec SQLExecutor, driver *models.Driver) error
	GetByID(ctx context.Context, id int) (*models.Driver, error)
	GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Driver, error)
	List(ctx context.Context) ([]*models.Driver, error)
	ListForUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Driver, error)
	Update(ctx context.Context, exec SQLExecutor, driver *models.Driver) error
	UpdateValuation(ctx context.Context, exec SQLExecutor, id int, previousValue, currentValue, points float64) error
	UpdateImageKey(ctx context.Context, id int, key *string) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
	TotalValue(ctx context.Context) (float64, error)
}

type postgresDriverRepository struct {
	db    *sql.DB
	table string
}

// NewPostgresDriverRepository создаёт репозиторий поверх сезонной таблицы.
// The table name comes from the season registry, never from request input.
func NewPostgresDriverRepository(db *sql.DB, table string) DriverRepository {
	return &postgresDriverRepository{db: db, table: table}
}

func (r *postgresDriverRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresDriverRepository) Create(ctx context.Context, exec SQLExecutor, driver *models.Driver) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		INSERT INTO %s (name, current_value, previous_value, points, categories, country, image_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`, r.table)

	err := executor.QueryRowContext(ctx, query,
		driver.Name,
		driver.CurrentValue,
		driver.PreviousValue,
		driver.Points,
		pq.Array(categoriesToStrings(driver.Categories)),
		driver.Country,
		driver.ImageKey,
	).Scan(&driver.ID, &driver.CreatedAt)
	if err != nil {
		if errors.Is(mapConflict(err), ErrConflict) {
			return ErrDriverNameConflict
		}
		return fmt.Errorf("failed to create driver: %w", err)
	}
	return nil
}

func (r *postgresDriverRepository) GetByID(ctx context.Context, id int) (*models.Driver, error) {
	query := fmt.Sprintf(`
		SELECT id, name, current_value, previous_value, points, categories, country, image_key, created_at
		FROM %s WHERE id = $1`, r.table)
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDs returns drivers for the given ids in no particular order; the
// caller diffs the result against the request to report unknown ids.
func (r *postgresDriverRepository) GetByIDs(ctx context.Context, exec SQLExecutor, ids []int) ([]*models.Driver, error) {
	if len(ids) == 0 {
		return []*models.Driver{}, nil
	}
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		SELECT id, name, current_value, previous_value, points, categories, country, image_key, created_at
		FROM %s WHERE id = ANY($1)`, r.table)
	rows, err := executor.QueryContext(ctx, query, pq.Array(intsToInt64s(ids)))
	if err != nil {
		return nil, fmt.Errorf("failed to get drivers by ids: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *postgresDriverRepository) List(ctx context.Context) ([]*models.Driver, error) {
	query := fmt.Sprintf(`
		SELECT id, name, current_value, previous_value, points, categories, country, image_key, created_at
		FROM %s ORDER BY current_value DESC, name ASC`, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// ListForUpdate loads the whole pool with row locks so a settlement
// serializes against concurrent driver writes.
func (r *postgresDriverRepository) ListForUpdate(ctx context.Context, exec SQLExecutor) ([]*models.Driver, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		SELECT id, name, current_value, previous_value, points, categories, country, image_key, created_at
		FROM %s ORDER BY id FOR UPDATE`, r.table)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list drivers for update: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *postgresDriverRepository) Update(ctx context.Context, exec SQLExecutor, driver *models.Driver) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE %s
		SET name = $1, current_value = $2, previous_value = $3, points = $4, categories = $5, country = $6
		WHERE id = $7`, r.table)
	result, err := executor.ExecContext(ctx, query,
		driver.Name,
		driver.CurrentValue,
		driver.PreviousValue,
		driver.Points,
		pq.Array(categoriesToStrings(driver.Categories)),
		driver.Country,
		driver.ID,
	)
	if err != nil {
		if errors.Is(mapConflict(err), ErrConflict) {
			return ErrDriverNameConflict
		}
		return fmt.Errorf("failed to update driver %d: %w", driver.ID, err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) UpdateValuation(ctx context.Context, exec SQLExecutor, id int, previousValue, currentValue, points float64) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE %s SET previous_value = $1, current_value = $2, points = $3
		WHERE id = $4`, r.table)
	result, err := executor.ExecContext(ctx, query, previousValue, currentValue, points, id)
	if err != nil {
		return fmt.Errorf("failed to update valuation of driver %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) UpdateImageKey(ctx context.Context, id int, key *string) error {
	query := fmt.Sprintf(`UPDATE %s SET image_key = $1 WHERE id = $2`, r.table)
	result, err := r.db.ExecContext(ctx, query, key, id)
	if err != nil {
		return fmt.Errorf("failed to update image key of driver %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) Delete(ctx context.Context, id int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete driver %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDriverNotFound)
}

func (r *postgresDriverRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count drivers: %w", err)
	}
	return count, nil
}

func (r *postgresDriverRepository) TotalValue(ctx context.Context) (float64, error) {
	var total float64
	query := fmt.Sprintf(`SELECT COALESCE(SUM(current_value), 0) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to sum driver values: %w", err)
	}
	return total, nil
}

func (r *postgresDriverRepository) scanOne(row *sql.Row) (*models.Driver, error) {
	var d models.Driver
	var categories pq.StringArray
	err := row.Scan(&d.ID, &d.Name, &d.CurrentValue, &d.PreviousValue, &d.Points,
		&categories, &d.Country, &d.ImageKey, &d.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDriverNotFound
		}
		return nil, fmt.Errorf("failed to scan driver: %w", err)
	}
	d.Categories = stringsToCategories(categories)
	return &d, nil
}

func (r *postgresDriverRepository) scanAll(rows *sql.Rows) ([]*models.Driver, error) {
	drivers := make([]*models.Driver, 0)
	for rows.Next() {
		var d models.Driver
		var categories pq.StringArray
		if err := rows.Scan(&d.ID, &d.Name, &d.CurrentValue, &d.PreviousValue, &d.Points,
			&categories, &d.Country, &d.ImageKey, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan driver row: %w", err)
		}
		d.Categories = stringsToCategories(categories)
		drivers = append(drivers, &d)
	}
	return drivers, rows.Err()
}

func categoriesToStrings(cs []models.Category) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return out
}

func stringsToCategories(ss []string) []models.Category {
	out := make([]models.Category, len(ss))
	for i, s := range ss {
		out[i] = models.Category(s)
	}
	return out
}
