package storage

import (
	"context"
	"fmt"

	"Orchestrator/internal/backend/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

type logStore struct {
	pool *pgxpool.Pool
}

func NewLogStore(pool *pgxpool.Pool) LogStore {
	return &logStore{pool: pool}
}

func (s *logStore) Append(ctx context.Context, entry *models.ProcessLog) error {
	query := `
		INSERT INTO process_logs (id, process_id, ts, level, message)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := s.pool.Exec(ctx, query, entry.ID, entry.ProcessID, entry.Timestamp, entry.Level, entry.Message)
	if err != nil {
		return fmt.Errorf("failed to append process log: %w", err)
	}
	return nil
}

func (s *logStore) List(ctx context.Context, processID string, level models.LogLevel, limit int) ([]*models.ProcessLog, error) {
	query, args := logListQuery(processID, level, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query process logs: %w", err)
	}
	defer rows.Close()

	var entries []*models.ProcessLog
	for rows.Next() {
		var entry models.ProcessLog
		if err := rows.Scan(&entry.ID, &entry.ProcessID, &entry.Timestamp, &entry.Level, &entry.Message); err != nil {
			return nil, fmt.Errorf("failed to scan process log row: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating process log rows: %w", err)
	}

	return entries, nil
}

// logListQuery отдает записи от новых к старым
func logListQuery(processID string, level models.LogLevel, limit int) (string, []any) {
	var where whereBuilder
	where.add("process_id = ?", processID)
	if level != "" {
		where.add("level = ?", level)
	}

	query := `SELECT id, process_id, ts, level, message FROM process_logs` + where.String() + ` ORDER BY ts DESC, id DESC`
	args := where.args
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args
}
