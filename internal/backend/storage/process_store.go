package storage

import (
	"context"
	"errors"
	"fmt"

	"Orchestrator/internal/backend/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const processColumns = `id, name, status, machine_id, start_time, end_time, duration, description, type, parameters, created_at`

type processStore struct {
	pool *pgxpool.Pool
}

func NewProcessStore(pool *pgxpool.Pool) ProcessStore {
	return &processStore{pool: pool}
}

func scanProcess(row rowScanner) (*models.Process, error) {
	var p models.Process
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Status,
		&p.MachineID,
		&p.StartTime,
		&p.EndTime,
		&p.Duration,
		&p.Description,
		&p.Type,
		&p.Parameters,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func processArgs(p *models.Process) []any {
	return []any{
		p.ID,
		p.Name,
		p.Status,
		p.MachineID,
		p.StartTime,
		p.EndTime,
		p.Duration,
		p.Description,
		p.Type,
		p.Parameters,
		p.CreatedAt,
	}
}

func (s *processStore) Create(ctx context.Context, process *models.Process) error {
	query := `
		INSERT INTO processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	if _, err := s.pool.Exec(ctx, query, processArgs(process)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to create process: %w", err)
	}

	return nil
}

func (s *processStore) GetByID(ctx context.Context, id string) (*models.Process, error) {
	query := `SELECT ` + processColumns + ` FROM processes WHERE id = $1`

	process, err := scanProcess(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get process by id %s: %w", id, err)
	}

	return process, nil
}

func (s *processStore) List(ctx context.Context, filter models.ProcessFilter) ([]*models.Process, error) {
	query, args := processListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query processes: %w", err)
	}
	defer rows.Close()

	processes := make([]*models.Process, 0)
	for rows.Next() {
		process, err := scanProcess(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan process row: %w", err)
		}
		processes = append(processes, process)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating process rows: %w", err)
	}

	return processes, nil
}

func (s *processStore) Update(ctx context.Context, id string, fn func(*models.Process) error) (*models.Process, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	process, err := scanProcess(tx.QueryRow(ctx, `SELECT `+processColumns+` FROM processes WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock process %s: %w", id, err)
	}

	if err := fn(process); err != nil {
		return nil, err
	}

	query := `
		UPDATE processes
		SET name = $2, status = $3, machine_id = $4, start_time = $5, end_time = $6,
			duration = $7, description = $8, type = $9, parameters = $10, created_at = $11
		WHERE id = $1
	`
	process.ID = id
	if _, err := tx.Exec(ctx, query, processArgs(process)...); err != nil {
		return nil, fmt.Errorf("failed to update process %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit process update: %w", err)
	}

	return process, nil
}

func (s *processStore) Upsert(ctx context.Context, process *models.Process) error {
	query := `
		INSERT INTO processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			machine_id = EXCLUDED.machine_id,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			duration = EXCLUDED.duration,
			description = EXCLUDED.description,
			type = EXCLUDED.type
	`

	if _, err := s.pool.Exec(ctx, query, processArgs(process)...); err != nil {
		return fmt.Errorf("failed to upsert process: %w", err)
	}
	return nil
}

func processListQuery(filter models.ProcessFilter) (string, []any) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.MachineID != "" {
		where.add("machine_id = ?", filter.MachineID)
	}
	if filter.Assignable {
		where.add("status <> ?", models.ProcessStatusRunning)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(name ILIKE ? OR type ILIKE ? OR description ILIKE ?)", pattern, pattern, pattern)
	}

	return `SELECT ` + processColumns + ` FROM processes` + where.String() + ` ORDER BY created_at, id`, where.args
}
