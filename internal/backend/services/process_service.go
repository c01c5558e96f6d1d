package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"Orchestrator/internal/backend/events"
	"Orchestrator/internal/backend/metrics"
	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/backend/storage"
	"Orchestrator/pkg/uuidutil"
)

const defaultLogLimit = 100

type ProcessService struct {
	processStore storage.ProcessStore
	machineStore storage.MachineStore
	logStore     storage.LogStore
	queue        *QueueService
	broker       *events.Broker
	logger       *slog.Logger
	now          func() time.Time
}

func NewProcessService(
	processStore storage.ProcessStore,
	machineStore storage.MachineStore,
	logStore storage.LogStore,
	queue *QueueService,
	broker *events.Broker,
	logger *slog.Logger,
) *ProcessService {

	if logger == nil {
		logger = slog.Default()
	}

	return &ProcessService{
		processStore: processStore,
		machineStore: machineStore,
		logStore:     logStore,
		queue:        queue,
		broker:       broker,
		logger:       logger.With("service", "processes"),
		now:          time.Now,
	}
}

func (s *ProcessService) ListProcesses(ctx context.Context, filter models.ProcessFilter) ([]*models.Process, error) {
	processes, err := s.processStore.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list processes", "error", err)
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	return processes, nil
}

func (s *ProcessService) GetProcess(ctx context.Context, id string) (*models.Process, error) {
	process, err := s.processStore.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get process", "error", err, "process_id", id)
		return nil, fmt.Errorf("failed to get process: %w", err)
	}

	if process == nil {
		return nil, ErrProcessNotFound
	}
	return process, nil
}

// AddProcess создает pending процесс на существующей машине; счетчик машины не меняется
func (s *ProcessService) AddProcess(ctx context.Context, form *models.NewProcessForm) (*models.Process, error) {
	s.logger.Info("adding process",
		"name", form.Name,
		"type", form.Type,
		"machine_id", form.MachineID,
	)

	name := strings.TrimSpace(form.Name)
	if name == "" {
		return nil, validationError("name", "Process name is required")
	}

	processType := strings.TrimSpace(form.Type)
	if processType == "" {
		return nil, validationError("type", "Process type is required")
	}

	if form.MachineID == "" {
		s.logger.Warn("add process failed: machine not selected", "name", name)
		return nil, validationError("machine_id", "Machine Required")
	}

	machine, err := s.machineStore.GetByID(ctx, form.MachineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	if machine == nil {
		s.logger.Warn("add process failed: machine not found", "machine_id", form.MachineID)
		return nil, validationError("machine_id", "Machine not found")
	}

	now := s.now()
	process := &models.Process{
		ID:          uuidutil.NewWithPrefix("process"),
		Name:        name,
		Status:      models.ProcessStatusPending,
		MachineID:   machine.ID,
		StartTime:   now,
		Description: strings.TrimSpace(form.Description),
		Type:        processType,
		CreatedAt:   now,
	}

	if err := s.processStore.Create(ctx, process); err != nil {
		s.logger.Error("failed to create process in storage", "error", err, "name", name)
		return nil, fmt.Errorf("failed to add process: %w", err)
	}

	appendLog(ctx, s.logStore, s.logger, process.ID, models.LogLevelInfo,
		fmt.Sprintf("Process created on %s", machine.Name))
	s.broker.Publish(ctx, events.ProcessCreated, process.ID, process)

	s.logger.Info("process added successfully",
		"process_id", process.ID,
		"machine_id", machine.ID,
	)
	return process, nil
}

// AssignAndRun переносит процесс на машину и запускает его.
// Откатов нет: повторный вызов снова увеличит process_count машины.
func (s *ProcessService) AssignAndRun(ctx context.Context, form *models.ProcessAssignmentForm) (*models.AssignmentResult, error) {
	s.logger.Info("assigning process",
		"process_id", form.ProcessID,
		"machine_id", form.MachineID,
	)

	if form.ProcessID == "" || form.MachineID == "" {
		metrics.Assignments.WithLabelValues("invalid").Inc()
		return nil, validationError("", "Please select both a process and a machine")
	}

	process, err := s.processStore.GetByID(ctx, form.ProcessID)
	if err != nil {
		return nil, fmt.Errorf("failed to get process: %w", err)
	}
	if process == nil {
		s.logger.Warn("assignment failed: process not found", "process_id", form.ProcessID)
		metrics.Assignments.WithLabelValues("not_found").Inc()
		return &models.AssignmentResult{Success: false, Message: "Process not found"}, nil
	}

	machine, err := s.machineStore.GetByID(ctx, form.MachineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	if machine == nil {
		s.logger.Warn("assignment failed: machine not found", "machine_id", form.MachineID)
		metrics.Assignments.WithLabelValues("not_found").Inc()
		return &models.AssignmentResult{Success: false, Message: "Machine not found"}, nil
	}

	process, err = s.processStore.Update(ctx, process.ID, func(p *models.Process) error {
		p.MachineID = machine.ID
		p.Status = models.ProcessStatusRunning
		p.StartTime = s.now()
		p.EndTime = nil
		p.Duration = ""
		p.Parameters = form.Parameters
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update process", "error", err, "process_id", form.ProcessID)
		return nil, fmt.Errorf("failed to update process: %w", err)
	}
	if process == nil {
		return &models.AssignmentResult{Success: false, Message: "Process not found"}, nil
	}

	machine, err = s.machineStore.Update(ctx, machine.ID, startOnMachine)
	if err != nil {
		s.logger.Error("failed to update machine", "error", err, "machine_id", form.MachineID)
		return nil, fmt.Errorf("failed to update machine: %w", err)
	}
	if machine == nil {
		return &models.AssignmentResult{Success: false, Message: "Machine not found"}, nil
	}

	appendLog(ctx, s.logStore, s.logger, process.ID, models.LogLevelInfo,
		fmt.Sprintf("Assigned to %s with parameters: %s", machine.Name, paramsJSON(form.Parameters)))

	if s.queue != nil {
		if _, err := s.queue.Enqueue(ctx, process, form.Parameters, models.PriorityMedium); err != nil {
			s.logger.Error("assignment saved but execution was not queued",
				"error", err,
				"process_id", process.ID,
			)
		}
	}

	metrics.Assignments.WithLabelValues("success").Inc()
	s.broker.Publish(ctx, events.ProcessAssigned, process.ID, map[string]any{
		"process": process,
		"machine": machine,
	})

	s.logger.Info("process assigned and started",
		"process_id", process.ID,
		"machine_id", machine.ID,
		"machine_process_count", machine.ProcessCount,
	)

	return &models.AssignmentResult{
		Success: true,
		Message: fmt.Sprintf("Process %s assigned to %s and started", process.Name, machine.Name),
		Process: process,
		Machine: machine,
	}, nil
}

// SubmitResult фиксирует результат выполнения от воркера
func (s *ProcessService) SubmitResult(ctx context.Context, processID string, result *models.ExecutionResult) (*models.Process, error) {
	s.logger.Info("submitting execution result",
		"process_id", processID,
		"execution_id", result.ExecutionID,
		"success", result.Success,
		"exit_code", result.ExitCode,
	)

	var machineID string
	var wasRunning bool
	process, err := s.processStore.Update(ctx, processID, func(p *models.Process) error {
		now := s.now()
		wasRunning = p.Status == models.ProcessStatusRunning
		machineID = p.MachineID

		if result.Success {
			p.Status = models.ProcessStatusCompleted
		} else {
			p.Status = models.ProcessStatusFailed
		}
		p.EndTime = &now
		p.Duration = models.FormatDuration(now.Sub(p.StartTime))
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update process with result", "error", err, "process_id", processID)
		return nil, fmt.Errorf("failed to save result: %w", err)
	}
	if process == nil {
		return nil, ErrProcessNotFound
	}

	if wasRunning {
		if _, err := s.machineStore.Update(ctx, machineID, finishOnMachine); err != nil {
			s.logger.Error("failed to release machine", "error", err, "machine_id", machineID)
		}
	}

	s.appendResultLogs(ctx, process.ID, result)
	metrics.ExecutionResults.WithLabelValues(string(process.Status)).Inc()
	s.broker.Publish(ctx, events.ProcessFinished, process.ID, process)

	s.logger.Info("execution result saved",
		"process_id", process.ID,
		"status", process.Status,
		"duration", process.Duration,
	)
	return process, nil
}

func (s *ProcessService) appendResultLogs(ctx context.Context, processID string, result *models.ExecutionResult) {
	for _, line := range strings.Split(strings.TrimSpace(result.Output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			appendLog(ctx, s.logStore, s.logger, processID, models.LogLevelInfo, line)
		}
	}

	if result.Error != "" {
		appendLog(ctx, s.logStore, s.logger, processID, models.LogLevelError, result.Error)
	}

	if result.Success {
		appendLog(ctx, s.logStore, s.logger, processID, models.LogLevelInfo,
			fmt.Sprintf("Execution %s completed", result.ExecutionID))
	} else {
		appendLog(ctx, s.logStore, s.logger, processID, models.LogLevelError,
			fmt.Sprintf("Execution %s failed with exit code %d", result.ExecutionID, result.ExitCode))
	}
}

// Logs возвращает логи процесса, сначала новые; level "all" или "" - все уровни
func (s *ProcessService) Logs(ctx context.Context, processID string, level string, limit int) ([]*models.ProcessLog, error) {
	if _, err := s.GetProcess(ctx, processID); err != nil {
		return nil, err
	}

	var logLevel models.LogLevel
	if level != "" && level != "all" {
		logLevel = models.LogLevel(level)
		if !logLevel.IsValid() {
			return nil, validationError("level", fmt.Sprintf("unknown log level %q", level))
		}
	}

	if limit <= 0 {
		limit = defaultLogLimit
	}

	entries, err := s.logStore.List(ctx, processID, logLevel, limit)
	if err != nil {
		s.logger.Error("failed to list process logs", "error", err, "process_id", processID)
		return nil, fmt.Errorf("failed to list logs: %w", err)
	}
	return entries, nil
}

// finishOnMachine - на машине завершился процесс, счетчик не уходит ниже нуля
func finishOnMachine(m *models.Machine) error {
	if m.ProcessCount > 0 {
		m.ProcessCount--
	}
	if m.ProcessCount == 0 && m.Status == models.MachineStatusActive {
		m.Status = models.MachineStatusIdle
	}
	return nil
}
