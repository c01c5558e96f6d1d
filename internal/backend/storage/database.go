package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"Orchestrator/internal/config"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS machines (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	status        TEXT NOT NULL,
	ip_address    TEXT NOT NULL,
	last_seen     TIMESTAMPTZ NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	process_count INTEGER NOT NULL DEFAULT 0,
	cpu_usage     DOUBLE PRECISION NOT NULL DEFAULT 0,
	memory_usage  DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS processes (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	status      TEXT NOT NULL,
	machine_id  TEXT NOT NULL,
	start_time  TIMESTAMPTZ NOT NULL,
	end_time    TIMESTAMPTZ,
	duration    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	type        TEXT NOT NULL DEFAULT '',
	parameters  JSONB,
	created_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processes_machine_id ON processes (machine_id);

CREATE TABLE IF NOT EXISTS agents (
	id            TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	status        TEXT NOT NULL,
	version       TEXT NOT NULL,
	type          TEXT NOT NULL,
	machine_ids   TEXT[] NOT NULL DEFAULT '{}',
	last_updated  TIMESTAMPTZ NOT NULL,
	description   TEXT NOT NULL DEFAULT '',
	configuration JSONB,
	created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS process_logs (
	id         TEXT PRIMARY KEY,
	process_id TEXT NOT NULL,
	ts         TIMESTAMPTZ NOT NULL,
	level      TEXT NOT NULL,
	message    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_process_logs_process_ts ON process_logs (process_id, ts DESC);
`

func NewPostgres(ctx context.Context, cfg *config.DatabaseConfig, log *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("Failed to open connection to postgres", "error", err)
		return nil, fmt.Errorf("failed to open postgres database: %w", err)
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping postgres database: %w", err)
	}

	log.Info("Successfully connected to postgres database", "host", cfg.Host, "dbname", cfg.DBName)
	return pool, nil
}

// Migrate создает таблицы, если их еще нет
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func NewPostgresStores(pool *pgxpool.Pool) *Stores {
	return &Stores{
		Machines:  NewMachineStore(pool),
		Processes: NewProcessStore(pool),
		Agents:    NewAgentStore(pool),
		Logs:      NewLogStore(pool),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

// whereBuilder собирает условия WHERE с позиционными параметрами
type whereBuilder struct {
	clauses []string
	args    []any
}

func (w *whereBuilder) add(clause string, values ...any) {
	for _, v := range values {
		w.args = append(w.args, v)
		clause = strings.Replace(clause, "?", "$"+strconv.Itoa(len(w.args)), 1)
	}
	w.clauses = append(w.clauses, clause)
}

func (w *whereBuilder) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func likePattern(search string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(strings.TrimSpace(search)) + "%"
}
