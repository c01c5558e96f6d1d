package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"Orchestrator/internal/backend/dataverse"
	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/backend/storage"

	"github.com/google/uuid"
)

type testEnv struct {
	stores    *storage.Stores
	queue     storage.Queue
	machines  *MachineService
	processes *ProcessService
	executor  *QueueService
	agents    *AgentService
	dashboard *DashboardService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	stores := storage.NewMemoryStores()
	data, err := storage.LoadSeed("")
	if err != nil {
		t.Fatalf("LoadSeed() error: %v", err)
	}
	if err := storage.Seed(context.Background(), stores, data, time.Now(), testLogger()); err != nil {
		t.Fatalf("Seed() error: %v", err)
	}

	queue := storage.NewMemoryQueue()
	log := testLogger()

	executor := NewQueueService(queue, stores.Processes, stores.Machines, stores.Logs, nil,
		QueueServiceConfig{PollTimeout: 20 * time.Millisecond}, log)

	return &testEnv{
		stores:    stores,
		queue:     queue,
		machines:  NewMachineService(stores.Machines, stores.Processes, nil, MachineServiceConfig{OfflineAfter: 10 * time.Minute}, log),
		processes: NewProcessService(stores.Processes, stores.Machines, stores.Logs, executor, nil, log),
		executor:  executor,
		agents:    NewAgentService(stores.Agents, stores.Machines, stores.Processes, nil, log),
		dashboard: NewDashboardService(stores.Machines, stores.Processes, stores.Agents, executor, log),
	}
}

func TestAddMachine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		form    models.NewMachineForm
		wantErr bool
	}{
		{"valid", models.NewMachineForm{Name: "Edge", IPAddress: "10.0.0.1"}, false},
		{"explicit status", models.NewMachineForm{Name: "Edge", IPAddress: "10.0.0.2", Status: models.MachineStatusActive}, false},
		{"empty name", models.NewMachineForm{Name: "  ", IPAddress: "10.0.0.1"}, true},
		{"bad ip", models.NewMachineForm{Name: "Edge", IPAddress: "256.1.1.1"}, true},
		{"short ip", models.NewMachineForm{Name: "Edge", IPAddress: "10.0.1"}, true},
		{"unknown status", models.NewMachineForm{Name: "Edge", IPAddress: "10.0.0.1", Status: "busy"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			machine, err := env.machines.AddMachine(ctx, &tt.form)
			if tt.wantErr {
				if !IsValidation(err) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("AddMachine() error: %v", err)
			}

			wantStatus := tt.form.Status
			if wantStatus == "" {
				wantStatus = models.MachineStatusIdle
			}
			if machine.Status != wantStatus {
				t.Errorf("expected status %s, got %s", wantStatus, machine.Status)
			}
			if machine.ProcessCount != 0 || machine.CPUUsage != 0 || machine.MemoryUsage != 0 {
				t.Errorf("new machine should start with zero counters: %+v", machine)
			}
			rest, ok := strings.CutPrefix(machine.ID, "machine-")
			if _, err := uuid.Parse(rest); !ok || err != nil || machine.LastSeen.IsZero() {
				t.Errorf("unexpected machine %+v", machine)
			}
		})
	}
}

func TestGetMachineNotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.machines.GetMachine(context.Background(), "machine-404")
	if !errors.Is(err, ErrMachineNotFound) {
		t.Errorf("expected ErrMachineNotFound, got %v", err)
	}
}

func TestProcessesForMachine(t *testing.T) {
	env := newTestEnv(t)

	processes, err := env.machines.ProcessesForMachine(context.Background(), "machine-001")
	if err != nil {
		t.Fatalf("ProcessesForMachine() error: %v", err)
	}
	if len(processes) != 3 {
		t.Fatalf("expected 3 processes on machine-001, got %d", len(processes))
	}
	for _, p := range processes {
		if p.MachineID != "machine-001" {
			t.Errorf("process %s belongs to %s", p.ID, p.MachineID)
		}
	}
}

func TestHeartbeatRevivesOfflineMachine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.stores.Machines.Update(ctx, "machine-002", func(m *models.Machine) error {
		m.Status = models.MachineStatusOffline
		m.ProcessCount = 0
		return nil
	})

	machine, err := env.machines.Heartbeat(ctx, "machine-002", &models.HeartbeatRequest{CPUUsage: 130, MemoryUsage: -5})
	if err != nil {
		t.Fatalf("Heartbeat() error: %v", err)
	}
	if machine.Status != models.MachineStatusIdle {
		t.Errorf("expected idle, got %s", machine.Status)
	}
	if machine.CPUUsage != 100 || machine.MemoryUsage != 0 {
		t.Errorf("usage should be clamped, got cpu=%v mem=%v", machine.CPUUsage, machine.MemoryUsage)
	}

	// error остается до вмешательства оператора
	machine, err = env.machines.Heartbeat(ctx, "machine-004", &models.HeartbeatRequest{})
	if err != nil {
		t.Fatalf("Heartbeat() error: %v", err)
	}
	if machine.Status != models.MachineStatusError {
		t.Errorf("expected error status to stay, got %s", machine.Status)
	}

	if _, err := env.machines.Heartbeat(ctx, "machine-404", &models.HeartbeatRequest{}); !errors.Is(err, ErrMachineNotFound) {
		t.Errorf("expected ErrMachineNotFound, got %v", err)
	}
}

func TestHeartbeatLivenessKeepsUsage(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.machines.Heartbeat(ctx, "machine-001", &models.HeartbeatRequest{CPUUsage: 61.5, MemoryUsage: 48}); err != nil {
		t.Fatalf("Heartbeat() error: %v", err)
	}

	before := time.Now()
	machine, err := env.machines.Heartbeat(ctx, "machine-001", &models.HeartbeatRequest{UsageUnavailable: true})
	if err != nil {
		t.Fatalf("Heartbeat() error: %v", err)
	}
	if machine.CPUUsage != 61.5 || machine.MemoryUsage != 48 {
		t.Errorf("usage should be kept, got cpu=%v mem=%v", machine.CPUUsage, machine.MemoryUsage)
	}
	if machine.LastSeen.Before(before.Add(-time.Second)) {
		t.Errorf("LastSeen not refreshed: %v", machine.LastSeen)
	}
}

func TestMarkStaleOffline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	marked, err := env.machines.MarkStaleOffline(ctx)
	if err != nil {
		t.Fatalf("MarkStaleOffline() error: %v", err)
	}
	// machine-002 (35m) и machine-004 (4h)
	if marked != 2 {
		t.Errorf("expected 2 machines marked offline, got %d", marked)
	}

	offline, _ := env.machines.ListMachines(ctx, models.MachineFilter{Status: models.MachineStatusOffline})
	if len(offline) != 2 {
		t.Errorf("expected 2 offline machines, got %d", len(offline))
	}

	disabled := NewMachineService(env.stores.Machines, env.stores.Processes, nil, MachineServiceConfig{}, testLogger())
	if marked, _ := disabled.MarkStaleOffline(ctx); marked != 0 {
		t.Errorf("sweep with zero threshold should be disabled, marked %d", marked)
	}
}

func TestAddProcess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.processes.AddProcess(ctx, &models.NewProcessForm{Name: "Import", Type: "Data Sync"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "Machine Required" {
		t.Fatalf("expected Machine Required, got %v", err)
	}

	if _, err := env.processes.AddProcess(ctx, &models.NewProcessForm{Name: "Import", Type: "Data Sync", MachineID: "machine-404"}); !IsValidation(err) {
		t.Errorf("expected validation error for unknown machine, got %v", err)
	}

	before, _ := env.stores.Machines.GetByID(ctx, "machine-002")
	process, err := env.processes.AddProcess(ctx, &models.NewProcessForm{Name: "Import", Type: "Data Sync", MachineID: "machine-002"})
	if err != nil {
		t.Fatalf("AddProcess() error: %v", err)
	}
	if process.Status != models.ProcessStatusPending || process.StartTime.IsZero() {
		t.Errorf("unexpected process %+v", process)
	}

	after, _ := env.stores.Machines.GetByID(ctx, "machine-002")
	if after.ProcessCount != before.ProcessCount {
		t.Errorf("adding a process must not touch process_count: %d -> %d", before.ProcessCount, after.ProcessCount)
	}
}

func TestAssignAndRun(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	form := &models.ProcessAssignmentForm{
		ProcessID:  "process-003",
		MachineID:  "machine-002",
		Parameters: map[string]any{"dry_run": true},
	}

	result, err := env.processes.AssignAndRun(ctx, form)
	if err != nil {
		t.Fatalf("AssignAndRun() error: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got %q", result.Message)
	}
	if result.Message != "Process Log Cleanup assigned to Development VM and started" {
		t.Errorf("unexpected message %q", result.Message)
	}
	if result.Process.Status != models.ProcessStatusRunning || result.Process.MachineID != "machine-002" {
		t.Errorf("unexpected process %+v", result.Process)
	}
	if result.Process.Parameters["dry_run"] != true {
		t.Errorf("parameters not stored: %v", result.Process.Parameters)
	}
	if result.Machine.Status != models.MachineStatusActive || result.Machine.ProcessCount != 4 {
		t.Errorf("expected active machine with 4 processes, got %s/%d", result.Machine.Status, result.Machine.ProcessCount)
	}

	// повтор снова увеличивает счетчик
	result, err = env.processes.AssignAndRun(ctx, form)
	if err != nil || !result.Success {
		t.Fatalf("second AssignAndRun() failed: %v %+v", err, result)
	}
	if result.Machine.ProcessCount != 5 {
		t.Errorf("expected counter 5 after repeat, got %d", result.Machine.ProcessCount)
	}

	length, _ := env.queue.Length(ctx, QueueName("machine-002", models.PriorityMedium))
	if length != 2 {
		t.Errorf("expected 2 queued executions, got %d", length)
	}
}

func TestAssignAndRunClearsEndTime(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.processes.AssignAndRun(context.Background(), &models.ProcessAssignmentForm{
		ProcessID: "process-002",
		MachineID: "machine-003",
	})
	if err != nil || !result.Success {
		t.Fatalf("AssignAndRun() failed: %v %+v", err, result)
	}
	if result.Process.EndTime != nil || result.Process.Duration != "" {
		t.Errorf("end time and duration should be cleared: %+v", result.Process)
	}
}

func TestAssignAndRunMissingRecords(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		form    models.ProcessAssignmentForm
		message string
	}{
		{"unknown process", models.ProcessAssignmentForm{ProcessID: "process-404", MachineID: "machine-002"}, "Process not found"},
		{"unknown machine", models.ProcessAssignmentForm{ProcessID: "process-003", MachineID: "machine-404"}, "Machine not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := env.processes.AssignAndRun(ctx, &tt.form)
			if err != nil {
				t.Fatalf("AssignAndRun() error: %v", err)
			}
			if result.Success || result.Message != tt.message {
				t.Errorf("unexpected result %+v", result)
			}
		})
	}

	process, _ := env.stores.Processes.GetByID(ctx, "process-003")
	if process.Status != models.ProcessStatusPending {
		t.Errorf("process must not be mutated, got %s", process.Status)
	}
	machine, _ := env.stores.Machines.GetByID(ctx, "machine-002")
	if machine.Status != models.MachineStatusIdle || machine.ProcessCount != 3 {
		t.Errorf("machine must not be mutated, got %s/%d", machine.Status, machine.ProcessCount)
	}

	if _, err := env.processes.AssignAndRun(ctx, &models.ProcessAssignmentForm{ProcessID: "process-003"}); !IsValidation(err) {
		t.Errorf("expected validation error for empty machine, got %v", err)
	}
}

func TestExecuteProcess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	resp, err := env.executor.ExecuteProcess(ctx, &models.ExecutionRequest{ProcessID: "process-404"})
	if err != nil {
		t.Fatalf("ExecuteProcess() error: %v", err)
	}
	if resp.Status != models.ExecutionStatusFailed || resp.Message != "Process not found" || resp.ExecutionID != "" {
		t.Errorf("unexpected response %+v", resp)
	}

	resp, err = env.executor.ExecuteProcess(ctx, &models.ExecutionRequest{ProcessID: "process-008"})
	if err != nil {
		t.Fatalf("ExecuteProcess() error: %v", err)
	}
	if resp.Status != models.ExecutionStatusQueued || !strings.HasPrefix(resp.ExecutionID, "exec-") {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Message != "Process Email Campaign queued for execution with parameters: {}" {
		t.Errorf("unexpected message %q", resp.Message)
	}

	if _, err := env.executor.ExecuteProcess(ctx, &models.ExecutionRequest{ProcessID: "process-008", Priority: "urgent"}); !IsValidation(err) {
		t.Errorf("expected validation error for unknown priority, got %v", err)
	}
}

func TestNextExecutionPriorityAndPickup(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	low, _ := env.executor.ExecuteProcess(ctx, &models.ExecutionRequest{ProcessID: "process-008", Priority: models.PriorityLow})
	high, _ := env.executor.ExecuteProcess(ctx, &models.ExecutionRequest{ProcessID: "process-008", Priority: models.PriorityHigh})

	stats, err := env.executor.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}
	if stats.High != 1 || stats.Low != 1 || stats.Total != 2 || stats.Machines != 5 {
		t.Errorf("unexpected stats %+v", stats)
	}

	first, err := env.executor.NextExecution(ctx, "machine-005")
	if err != nil {
		t.Fatalf("NextExecution() error: %v", err)
	}
	if first.ID != high.ExecutionID {
		t.Errorf("expected high priority first, got %s", first.ID)
	}

	process, _ := env.stores.Processes.GetByID(ctx, "process-008")
	if process.Status != models.ProcessStatusRunning {
		t.Errorf("picked up process should be running, got %s", process.Status)
	}
	machine, _ := env.stores.Machines.GetByID(ctx, "machine-005")
	if machine.ProcessCount != 13 {
		t.Errorf("expected counter 13 after pickup, got %d", machine.ProcessCount)
	}

	second, _ := env.executor.NextExecution(ctx, "machine-005")
	if second == nil || second.ID != low.ExecutionID {
		t.Fatalf("expected low priority execution, got %+v", second)
	}
	machine, _ = env.stores.Machines.GetByID(ctx, "machine-005")
	if machine.ProcessCount != 13 {
		t.Errorf("already running process must not be counted twice, got %d", machine.ProcessCount)
	}

	empty, err := env.executor.NextExecution(ctx, "machine-005")
	if err != nil || empty != nil {
		t.Errorf("expected empty queue, got %+v %v", empty, err)
	}

	if _, err := env.executor.NextExecution(ctx, "machine-404"); !errors.Is(err, ErrMachineNotFound) {
		t.Errorf("expected ErrMachineNotFound, got %v", err)
	}
}

func TestSubmitResult(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := env.processes.AssignAndRun(ctx, &models.ProcessAssignmentForm{ProcessID: "process-003", MachineID: "machine-002"})
	if err != nil || !result.Success {
		t.Fatalf("AssignAndRun() failed: %v", err)
	}

	process, err := env.processes.SubmitResult(ctx, "process-003", &models.ExecutionResult{
		ExecutionID: "exec-1",
		Success:     false,
		ExitCode:    2,
		Output:      "step one\nstep two\n",
		Error:       "disk full",
	})
	if err != nil {
		t.Fatalf("SubmitResult() error: %v", err)
	}
	if process.Status != models.ProcessStatusFailed || process.EndTime == nil || process.Duration != "0s" {
		t.Errorf("unexpected process %+v", process)
	}

	machine, _ := env.stores.Machines.GetByID(ctx, "machine-002")
	if machine.ProcessCount != 3 {
		t.Errorf("expected counter back to 3, got %d", machine.ProcessCount)
	}

	logs, err := env.processes.Logs(ctx, "process-003", "error", 0)
	if err != nil {
		t.Fatalf("Logs() error: %v", err)
	}
	if len(logs) != 2 {
		t.Errorf("expected 2 error logs, got %d", len(logs))
	}

	all, _ := env.processes.Logs(ctx, "process-003", "all", 0)
	var sawOutput bool
	for _, entry := range all {
		if entry.Message == "step two" {
			sawOutput = true
		}
	}
	if !sawOutput {
		t.Error("output lines should be stored as logs")
	}

	if _, err := env.processes.Logs(ctx, "process-003", "fatal", 0); !IsValidation(err) {
		t.Errorf("expected validation error for unknown level, got %v", err)
	}
	if _, err := env.processes.SubmitResult(ctx, "process-404", &models.ExecutionResult{}); !errors.Is(err, ErrProcessNotFound) {
		t.Errorf("expected ErrProcessNotFound, got %v", err)
	}
}

func TestSubmitResultFloorsCounter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.stores.Processes.Update(ctx, "process-004", func(p *models.Process) error {
		p.Status = models.ProcessStatusRunning
		p.MachineID = "machine-004"
		return nil
	})

	if _, err := env.processes.SubmitResult(ctx, "process-004", &models.ExecutionResult{Success: true}); err != nil {
		t.Fatalf("SubmitResult() error: %v", err)
	}

	machine, _ := env.stores.Machines.GetByID(ctx, "machine-004")
	if machine.ProcessCount != 0 {
		t.Errorf("counter must not go below zero, got %d", machine.ProcessCount)
	}
}

func TestAddAgent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.agents.AddAgent(ctx, &models.NewAgentForm{Name: "Sync", Type: "Data Sync"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Message != "Please fill in all required fields" {
		t.Fatalf("expected required fields error, got %v", err)
	}

	if _, err := env.agents.AddAgent(ctx, &models.NewAgentForm{Name: "Sync", Type: "Data Sync", MachineIDs: []string{"machine-404"}}); !IsValidation(err) {
		t.Errorf("expected validation error for unknown machine, got %v", err)
	}

	agent, err := env.agents.AddAgent(ctx, &models.NewAgentForm{
		Name:          "  Sync  ",
		Type:          "Data Sync",
		MachineIDs:    []string{"machine-001", "machine-002", "machine-001"},
		Configuration: map[string]any{" interval ": "5m", "  ": "dropped"},
	})
	if err != nil {
		t.Fatalf("AddAgent() error: %v", err)
	}
	if agent.Name != "Sync" || agent.Status != models.AgentStatusActive || agent.Version != "1.0.0" {
		t.Errorf("unexpected agent %+v", agent)
	}
	if len(agent.MachineIDs) != 2 {
		t.Errorf("machine ids should be de-duplicated, got %v", agent.MachineIDs)
	}
	if len(agent.Configuration) != 1 || agent.Configuration["interval"] != "5m" {
		t.Errorf("unexpected configuration %v", agent.Configuration)
	}
}

func TestAgentTypeCounts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.agents.AddAgent(ctx, &models.NewAgentForm{Name: "Probe", Type: "Monitoring", MachineIDs: []string{"machine-001"}})

	counts, err := env.agents.TypeCounts(ctx)
	if err != nil {
		t.Fatalf("TypeCounts() error: %v", err)
	}

	want := []models.AgentTypeCount{
		{Type: "Monitoring", Count: 2},
		{Type: "Backup", Count: 1},
		{Type: "Data Sync", Count: 1},
		{Type: "Reporting", Count: 1},
	}
	if len(counts) != len(want) {
		t.Fatalf("expected %d types, got %v", len(want), counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("position %d: expected %+v, got %+v", i, want[i], counts[i])
		}
	}
}

func TestAgentUpdatesAndRelations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	agent, err := env.agents.UpdateStatus(ctx, "agent-003", models.AgentStatusUpdating)
	if err != nil {
		t.Fatalf("UpdateStatus() error: %v", err)
	}
	if agent.Status != models.AgentStatusUpdating {
		t.Errorf("expected updating, got %s", agent.Status)
	}
	if _, err := env.agents.UpdateStatus(ctx, "agent-003", "sleeping"); !IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
	if _, err := env.agents.UpdateStatus(ctx, "agent-404", models.AgentStatusActive); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("expected ErrAgentNotFound, got %v", err)
	}

	agent, err = env.agents.UpdateConfiguration(ctx, "agent-001", map[string]any{"interval": "1m"})
	if err != nil {
		t.Fatalf("UpdateConfiguration() error: %v", err)
	}
	if len(agent.Configuration) != 1 || agent.Configuration["interval"] != "1m" {
		t.Errorf("unexpected configuration %v", agent.Configuration)
	}

	machines, err := env.agents.AgentMachines(ctx, "agent-001")
	if err != nil || len(machines) != 2 {
		t.Fatalf("expected 2 machines, got %d (%v)", len(machines), err)
	}

	processes, err := env.agents.AgentProcesses(ctx, "agent-001")
	if err != nil {
		t.Fatalf("AgentProcesses() error: %v", err)
	}
	// machine-001: 001, 002, 006; machine-003: 004
	if len(processes) != 4 {
		t.Errorf("expected 4 processes, got %d", len(processes))
	}
}

func TestDashboardStats(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stats, err := env.dashboard.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error: %v", err)
	}

	if stats.TotalMachines != 5 || stats.ActiveMachines != 3 || stats.IdleMachines != 1 || stats.ErrorMachines != 1 {
		t.Errorf("unexpected machine counters %+v", stats)
	}
	if stats.TotalProcesses != 8 || stats.RunningProcesses != 2 || stats.CompletedProcesses != 2 ||
		stats.PendingProcesses != 2 || stats.FailedProcesses != 1 || stats.StoppedProcesses != 1 {
		t.Errorf("unexpected process counters %+v", stats)
	}
	if stats.TotalAgents != 4 || stats.ActiveAgents != 2 || stats.ErrorAgents != 1 || stats.UpdatingAgents != 1 {
		t.Errorf("unexpected agent counters %+v", stats)
	}

	overview, err := env.dashboard.Overview(ctx)
	if err != nil {
		t.Fatalf("Overview() error: %v", err)
	}
	if len(overview.RecentProcesses) != 5 || len(overview.Machines) != 5 {
		t.Errorf("expected 5 processes and 5 machines, got %d/%d", len(overview.RecentProcesses), len(overview.Machines))
	}
	if overview.RecentProcesses[0].ID != "process-001" {
		t.Errorf("overview should keep insertion order, got %s", overview.RecentProcesses[0].ID)
	}
}

type fakeDataverse struct {
	records map[string][]map[string]any
	created []map[string]any
	updated map[string]map[string]any
	deleted []string
	err     error
}

func (f *fakeDataverse) Connect(ctx context.Context) error { return f.err }

func (f *fakeDataverse) QueryRecords(ctx context.Context, entity string, q dataverse.Query) ([]map[string]any, error) {
	if q.Filter == "" {
		return f.records[entity], f.err
	}

	var matched []map[string]any
	for _, record := range f.records[entity] {
		if id, ok := record["ac_machineid"].(string); ok && q.Filter == dataverse.MachineMapping.KeyFilter(id) {
			matched = append(matched, record)
		}
	}
	return matched, f.err
}

func (f *fakeDataverse) CreateRecord(ctx context.Context, entity string, data map[string]any) (string, error) {
	f.created = append(f.created, data)
	return "guid-1", f.err
}

func (f *fakeDataverse) UpdateRecord(ctx context.Context, entity, id string, data map[string]any) error {
	if f.updated == nil {
		f.updated = map[string]map[string]any{}
	}
	f.updated[id] = data
	return f.err
}

func (f *fakeDataverse) DeleteRecord(ctx context.Context, entity, id string) error {
	f.deleted = append(f.deleted, id)
	return f.err
}

func TestDataverseSync(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := &fakeDataverse{records: map[string][]map[string]any{
		"ac_machines": {
			{"ac_machineid": "machine-001", "ac_name": "Renamed Server", "ac_ipaddress": "192.168.1.100", "ac_status": "active"},
			{"ac_machineid": "machine-100", "ac_name": "Remote", "ac_ipaddress": "10.1.1.1"},
			{"ac_name": "No ID"},
		},
	}}
	service := NewDataverseService(client, env.stores.Machines, env.stores.Processes, nil, testLogger())

	result, err := service.PullMachines(ctx, 0)
	if err != nil {
		t.Fatalf("PullMachines() error: %v", err)
	}
	if result.Fetched != 3 || result.Saved != 2 || result.Skipped != 1 {
		t.Errorf("unexpected result %+v", result)
	}

	renamed, _ := env.stores.Machines.GetByID(ctx, "machine-001")
	if renamed.Name != "Renamed Server" {
		t.Errorf("expected upserted name, got %s", renamed.Name)
	}
	remote, _ := env.stores.Machines.GetByID(ctx, "machine-100")
	if remote == nil || remote.Status != models.MachineStatusIdle {
		t.Errorf("expected new idle machine, got %+v", remote)
	}

	id, created, err := service.PushMachine(ctx, "machine-002")
	if err != nil || id != "guid-1" || !created {
		t.Fatalf("PushMachine() = %q, %v, %v", id, created, err)
	}
	if client.created[0]["ac_name"] != "Development VM" {
		t.Errorf("unexpected pushed record %v", client.created[0])
	}

	if status := service.TestConnection(ctx); !status.Connected {
		t.Errorf("expected connected status, got %+v", status)
	}
}

func TestDataversePushUpdatesExisting(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	client := &fakeDataverse{records: map[string][]map[string]any{
		"ac_machines": {{"ac_machineid": "machine-001", "ac_name": "Production Server"}},
	}}
	service := NewDataverseService(client, env.stores.Machines, env.stores.Processes, nil, testLogger())

	for i := 0; i < 2; i++ {
		id, created, err := service.PushMachine(ctx, "machine-001")
		if err != nil {
			t.Fatalf("PushMachine() error: %v", err)
		}
		if created || id != "machine-001" {
			t.Errorf("PushMachine() = %q, created=%v, want update of machine-001", id, created)
		}
	}
	if len(client.created) != 0 {
		t.Errorf("existing machine must not be created again, got %d creates", len(client.created))
	}
	if client.updated["machine-001"]["ac_ipaddress"] != "192.168.1.100" {
		t.Errorf("unexpected updated record %v", client.updated["machine-001"])
	}

	if err := service.RemoveMachine(ctx, "machine-001"); err != nil {
		t.Fatalf("RemoveMachine() error: %v", err)
	}
	if len(client.deleted) != 1 || client.deleted[0] != "machine-001" {
		t.Errorf("unexpected deletes %v", client.deleted)
	}

	if err := service.RemoveMachine(ctx, "machine-002"); !errors.Is(err, ErrRemoteRecordNotFound) || !IsNotFound(err) {
		t.Errorf("expected ErrRemoteRecordNotFound, got %v", err)
	}
}

func TestDataverseDisabled(t *testing.T) {
	env := newTestEnv(t)
	service := NewDataverseService(nil, env.stores.Machines, env.stores.Processes, nil, testLogger())

	if _, err := service.PullProcesses(context.Background(), 10); !errors.Is(err, ErrDataverseDisabled) {
		t.Errorf("expected ErrDataverseDisabled, got %v", err)
	}
	if status := service.TestConnection(context.Background()); status.Enabled || status.Connected {
		t.Errorf("unexpected status %+v", status)
	}
}
