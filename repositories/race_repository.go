package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openlaps/apexfantasy/models"
)

var (
	ErrRaceNotFound         = errors.New("race not found")
	ErrRaceAlreadyProcessed = errors.New("race already processed")
)

type RaceRepository interface {
	Create(ctx context.Context, exec SQLExecutor, race *models.Race) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error)
	// GetByIDForUpdate locks the race row for the length of the enclosing
	// transaction; concurrent settlements of one race serialize on it.
	GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error)
	List(ctx context.Context) ([]*models.Race, error)
	ListProcessed(ctx context.Context, limit int) ([]*models.Race, error)
	Update(ctx context.Context, exec SQLExecutor, race *models.Race) error
	SetLocked(ctx context.Context, id int, locked bool) error
	// MarkProcessed flips is_processed and stores the settlement record.
	// It refuses a race that is already processed.
	MarkProcessed(ctx context.Context, exec SQLExecutor, id int, data *models.PPMData) error
	ResetProcessing(ctx context.Context, exec SQLExecutor, id int) error
	Delete(ctx context.Context, id int) error
	Count(ctx context.Context) (int, error)
}

type postgresRaceRepository struct {
	db    *sql.DB
	table string
}

func NewPostgresRaceRepository(db *sql.DB, table string) RaceRepository {
	return &postgresRaceRepository{db: db, table: table}
}

func (r *postgresRaceRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const raceColumns = `id, round_number, name, submission_deadline, is_locked, is_processed, ppm_data, created_at`

func (r *postgresRaceRepository) Create(ctx context.Context, exec SQLExecutor, race *models.Race) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		INSERT INTO %s (round_number, name, submission_deadline, is_locked, is_processed)
		VALUES ($1, $2, $3, $4, false)
		RETURNING id, created_at`, r.table)

	err := executor.QueryRowContext(ctx, query,
		race.RoundNumber,
		race.Name,
		race.SubmissionDeadline,
		race.IsLocked,
	).Scan(&race.ID, &race.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create race: %w", mapConflict(err))
	}
	return nil
}

func (r *postgresRaceRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, raceColumns, r.table)
	return r.scanOne(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRaceRepository) GetByIDForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Race, error) {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1 FOR UPDATE`, raceColumns, r.table)
	return r.scanOne(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresRaceRepository) List(ctx context.Context) ([]*models.Race, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY round_number ASC`, raceColumns, r.table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list races: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

// ListProcessed returns settled races, most recent round first. A limit of
// zero or less means no limit.
func (r *postgresRaceRepository) ListProcessed(ctx context.Context, limit int) ([]*models.Race, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s WHERE is_processed = true
		ORDER BY round_number DESC LIMIT NULLIF($1, 0)`, raceColumns, r.table)
	if limit < 0 {
		limit = 0
	}
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list processed races: %w", err)
	}
	defer rows.Close()
	return r.scanAll(rows)
}

func (r *postgresRaceRepository) Update(ctx context.Context, exec SQLExecutor, race *models.Race) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`
		UPDATE %s SET round_number = $1, name = $2, submission_deadline = $3, is_locked = $4
		WHERE id = $5`, r.table)
	result, err := executor.ExecContext(ctx, query,
		race.RoundNumber, race.Name, race.SubmissionDeadline, race.IsLocked, race.ID)
	if err != nil {
		return fmt.Errorf("failed to update race %d: %w", race.ID, mapConflict(err))
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}

func (r *postgresRaceRepository) SetLocked(ctx context.Context, id int, locked bool) error {
	query := fmt.Sprintf(`UPDATE %s SET is_locked = $1 WHERE id = $2`, r.table)
	result, err := r.db.ExecContext(ctx, query, locked, id)
	if err != nil {
		return fmt.Errorf("failed to set lock on race %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}

func (r *postgresRaceRepository) MarkProcessed(ctx context.Context, exec SQLExecutor, id int, data *models.PPMData) error {
	executor := r.getExecutor(exec)
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal ppm data for race %d: %w", id, err)
	}
	query := fmt.Sprintf(`
		UPDATE %s SET is_processed = true, ppm_data = $1
		WHERE id = $2 AND is_processed = false`, r.table)
	result, err := executor.ExecContext(ctx, query, payload, id)
	if err != nil {
		return fmt.Errorf("failed to mark race %d processed: %w", id, err)
	}
	return checkAffectedRows(result, ErrRaceAlreadyProcessed)
}

// ResetProcessing clears the settlement record. Used only by season copy,
// never by the settlement path.
func (r *postgresRaceRepository) ResetProcessing(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`UPDATE %s SET is_processed = false, is_locked = false, ppm_data = NULL WHERE id = $1`, r.table)
	result, err := executor.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to reset processing of race %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}

func (r *postgresRaceRepository) Delete(ctx context.Context, id int) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, r.table)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete race %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRaceNotFound)
}

func (r *postgresRaceRepository) Count(ctx context.Context) (int, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, r.table)
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count races: %w", err)
	}
	return count, nil
}

func (r *postgresRaceRepository) scanOne(row *sql.Row) (*models.Race, error) {
	var race models.Race
	var ppm []byte
	err := row.Scan(&race.ID, &race.RoundNumber, &race.Name, &race.SubmissionDeadline,
		&race.IsLocked, &race.IsProcessed, &ppm, &race.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRaceNotFound
		}
		return nil, fmt.Errorf("failed to scan race: %w", err)
	}
	if err := unmarshalPPM(ppm, &race); err != nil {
		return nil, err
	}
	return &race, nil
}

func (r *postgresRaceRepository) scanAll(rows *sql.Rows) ([]*models.Race, error) {
	races := make([]*models.Race, 0)
	for rows.Next() {
		var race models.Race
		var ppm []byte
		if err := rows.Scan(&race.ID, &race.RoundNumber, &race.Name, &race.SubmissionDeadline,
			&race.IsLocked, &race.IsProcessed, &ppm, &race.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan race row: %w", err)
		}
		if err := unmarshalPPM(ppm, &race); err != nil {
			return nil, err
		}
		races = append(races, &race)
	}
	return races, rows.Err()
}

func unmarshalPPM(raw []byte, race *models.Race) error {
	if len(raw) == 0 {
		return nil
	}
	var data models.PPMData
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("failed to unmarshal ppm data of race %d: %w", race.ID, err)
	}
	race.PPMData = &data
	return nil
}
