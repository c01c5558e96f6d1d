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

const machineColumns = `id, name, status, ip_address, last_seen, description, process_count, cpu_usage, memory_usage, created_at`

type machineStore struct {
	pool *pgxpool.Pool
}

func NewMachineStore(pool *pgxpool.Pool) MachineStore {
	return &machineStore{pool: pool}
}

func scanMachine(row rowScanner) (*models.Machine, error) {
	var m models.Machine
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Status,
		&m.IPAddress,
		&m.LastSeen,
		&m.Description,
		&m.ProcessCount,
		&m.CPUUsage,
		&m.MemoryUsage,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func machineArgs(m *models.Machine) []any {
	return []any{
		m.ID,
		m.Name,
		m.Status,
		m.IPAddress,
		m.LastSeen,
		m.Description,
		m.ProcessCount,
		m.CPUUsage,
		m.MemoryUsage,
		m.CreatedAt,
	}
}

func (s *machineStore) Create(ctx context.Context, machine *models.Machine) error {
	query := `
		INSERT INTO machines (` + machineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if _, err := s.pool.Exec(ctx, query, machineArgs(machine)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to create machine: %w", err)
	}

	return nil
}

func (s *machineStore) GetByID(ctx context.Context, id string) (*models.Machine, error) {
	query := `SELECT ` + machineColumns + ` FROM machines WHERE id = $1`

	machine, err := scanMachine(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get machine by id %s: %w", id, err)
	}

	return machine, nil
}

func (s *machineStore) List(ctx context.Context, filter models.MachineFilter) ([]*models.Machine, error) {
	query, args := machineListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query machines: %w", err)
	}
	defer rows.Close()

	machines := make([]*models.Machine, 0)
	for rows.Next() {
		machine, err := scanMachine(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan machine row: %w", err)
		}
		machines = append(machines, machine)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating machine rows: %w", err)
	}

	return machines, nil
}

func (s *machineStore) Update(ctx context.Context, id string, fn func(*models.Machine) error) (*models.Machine, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	machine, err := scanMachine(tx.QueryRow(ctx, `SELECT `+machineColumns+` FROM machines WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock machine %s: %w", id, err)
	}

	if err := fn(machine); err != nil {
		return nil, err
	}

	query := `
		UPDATE machines
		SET name = $2, status = $3, ip_address = $4, last_seen = $5, description = $6,
			process_count = $7, cpu_usage = $8, memory_usage = $9, created_at = $10
		WHERE id = $1
	`
	machine.ID = id
	if _, err := tx.Exec(ctx, query, machineArgs(machine)...); err != nil {
		return nil, fmt.Errorf("failed to update machine %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit machine update: %w", err)
	}

	return machine, nil
}

func (s *machineStore) Upsert(ctx context.Context, machine *models.Machine) error {
	query := `
		INSERT INTO machines (` + machineColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			status = EXCLUDED.status,
			ip_address = EXCLUDED.ip_address,
			last_seen = EXCLUDED.last_seen,
			description = EXCLUDED.description,
			process_count = EXCLUDED.process_count,
			cpu_usage = EXCLUDED.cpu_usage,
			memory_usage = EXCLUDED.memory_usage
	`

	if _, err := s.pool.Exec(ctx, query, machineArgs(machine)...); err != nil {
		return fmt.Errorf("failed to upsert machine: %w", err)
	}
	return nil
}

func machineListQuery(filter models.MachineFilter) (string, []any) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.Available {
		where.add("status NOT IN (?, ?)", models.MachineStatusOffline, models.MachineStatusError)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(name ILIKE ? OR ip_address ILIKE ? OR description ILIKE ?)", pattern, pattern, pattern)
	}

	return `SELECT ` + machineColumns + ` FROM machines` + where.String() + ` ORDER BY created_at, id`, where.args
}
