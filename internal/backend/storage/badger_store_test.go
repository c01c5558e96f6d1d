package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"Orchestrator/internal/backend/models"
)

func openTestBadger(t *testing.T) *Stores {
	t.Helper()
	db, err := OpenBadger(t.TempDir(), testLogger())
	if err != nil {
		t.Fatalf("OpenBadger() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewBadgerStores(db)
}

func TestBadgerStoresRoundTrip(t *testing.T) {
	ctx := context.Background()
	stores := openTestBadger(t)

	if err := Seed(ctx, stores, defaultSeed, time.Now(), testLogger()); err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	machines, err := stores.Machines.List(ctx, models.MachineFilter{})
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(machines) != 5 || machines[0].ID != "machine-001" {
		t.Fatalf("expected 5 machines in fixture order, got %d", len(machines))
	}

	active, _ := stores.Machines.List(ctx, models.MachineFilter{Status: models.MachineStatusActive})
	if len(active) != 3 {
		t.Errorf("expected 3 active machines, got %d", len(active))
	}

	agent, _ := stores.Agents.GetByID(ctx, "agent-001")
	if agent == nil || len(agent.MachineIDs) != 2 {
		t.Fatalf("expected agent-001 with two machines, got %+v", agent)
	}

	missing, err := stores.Processes.GetByID(ctx, "process-999")
	if missing != nil || err != nil {
		t.Errorf("expected nil, nil for missing process, got %v, %v", missing, err)
	}

	if err := stores.Machines.Create(ctx, &models.Machine{ID: "machine-001"}); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("expected ErrDuplicateID, got %v", err)
	}
}

func TestBadgerUpdate(t *testing.T) {
	ctx := context.Background()
	stores := openTestBadger(t)

	process := &models.Process{ID: "p1", Name: "job", Status: models.ProcessStatusPending, CreatedAt: time.Now()}
	if err := stores.Processes.Create(ctx, process); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	updated, err := stores.Processes.Update(ctx, "p1", func(p *models.Process) error {
		p.Status = models.ProcessStatusRunning
		p.Parameters = map[string]any{"runner": "command"}
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error: %v", err)
	}
	if updated.Status != models.ProcessStatusRunning {
		t.Errorf("expected running, got %s", updated.Status)
	}

	stored, _ := stores.Processes.GetByID(ctx, "p1")
	if stored.Parameters["runner"] != "command" {
		t.Errorf("expected parameters persisted, got %v", stored.Parameters)
	}
}

func TestBadgerLogsNewestFirst(t *testing.T) {
	ctx := context.Background()
	stores := openTestBadger(t)
	base := time.Now()

	for i, level := range []models.LogLevel{models.LogLevelInfo, models.LogLevelError, models.LogLevelInfo} {
		entry := &models.ProcessLog{
			ID:        string(rune('a' + i)),
			ProcessID: "process-001",
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Level:     level,
			Message:   string(rune('a' + i)),
		}
		if err := stores.Logs.Append(ctx, entry); err != nil {
			t.Fatalf("Append() error: %v", err)
		}
	}
	stores.Logs.Append(ctx, &models.ProcessLog{ID: "z", ProcessID: "process-0010", Timestamp: base.Add(time.Hour), Level: models.LogLevelInfo})

	all, err := stores.Logs.List(ctx, "process-001", "", 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(all) != 3 || all[0].Message != "c" || all[2].Message != "a" {
		t.Fatalf("unexpected logs: %+v", all)
	}

	errorsOnly, _ := stores.Logs.List(ctx, "process-001", models.LogLevelError, 0)
	if len(errorsOnly) != 1 || errorsOnly[0].Message != "b" {
		t.Errorf("unexpected error logs: %+v", errorsOnly)
	}
}
