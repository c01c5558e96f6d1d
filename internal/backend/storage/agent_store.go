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

const agentColumns = `id, name, status, version, type, machine_ids, last_updated, description, configuration, created_at`

type agentStore struct {
	pool *pgxpool.Pool
}

func NewAgentStore(pool *pgxpool.Pool) AgentStore {
	return &agentStore{pool: pool}
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var a models.Agent
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Status,
		&a.Version,
		&a.Type,
		&a.MachineIDs,
		&a.LastUpdated,
		&a.Description,
		&a.Configuration,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func agentArgs(a *models.Agent) []any {
	machineIDs := a.MachineIDs
	if machineIDs == nil {
		machineIDs = []string{}
	}
	return []any{
		a.ID,
		a.Name,
		a.Status,
		a.Version,
		a.Type,
		machineIDs,
		a.LastUpdated,
		a.Description,
		a.Configuration,
		a.CreatedAt,
	}
}

func (s *agentStore) Create(ctx context.Context, agent *models.Agent) error {
	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	if _, err := s.pool.Exec(ctx, query, agentArgs(agent)...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to create agent: %w", err)
	}

	return nil
}

func (s *agentStore) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	query := `SELECT ` + agentColumns + ` FROM agents WHERE id = $1`

	agent, err := scanAgent(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get agent by id %s: %w", id, err)
	}

	return agent, nil
}

func (s *agentStore) List(ctx context.Context, filter models.AgentFilter) ([]*models.Agent, error) {
	query, args := agentListQuery(filter)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query agents: %w", err)
	}
	defer rows.Close()

	agents := make([]*models.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agent row: %w", err)
		}
		agents = append(agents, agent)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating agent rows: %w", err)
	}

	return agents, nil
}

func (s *agentStore) Update(ctx context.Context, id string, fn func(*models.Agent) error) (*models.Agent, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	agent, err := scanAgent(tx.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock agent %s: %w", id, err)
	}

	if err := fn(agent); err != nil {
		return nil, err
	}

	query := `
		UPDATE agents
		SET name = $2, status = $3, version = $4, type = $5, machine_ids = $6,
			last_updated = $7, description = $8, configuration = $9, created_at = $10
		WHERE id = $1
	`
	agent.ID = id
	if _, err := tx.Exec(ctx, query, agentArgs(agent)...); err != nil {
		return nil, fmt.Errorf("failed to update agent %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit agent update: %w", err)
	}

	return agent, nil
}

func agentListQuery(filter models.AgentFilter) (string, []any) {
	var where whereBuilder
	if filter.Status != "" {
		where.add("status = ?", filter.Status)
	}
	if filter.Type != "" {
		where.add("type = ?", filter.Type)
	}
	if filter.MachineID != "" {
		where.add("? = ANY(machine_ids)", filter.MachineID)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		where.add("(name ILIKE ? OR type ILIKE ? OR description ILIKE ?)", pattern, pattern, pattern)
	}

	return `SELECT ` + agentColumns + ` FROM agents` + where.String() + ` ORDER BY created_at, id`, where.args
}
