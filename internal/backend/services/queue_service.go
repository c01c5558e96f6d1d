package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"Orchestrator/internal/backend/events"
	"Orchestrator/internal/backend/metrics"
	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/backend/storage"
	"Orchestrator/pkg/uuidutil"
)

type QueueService struct {
	queue        storage.Queue
	processStore storage.ProcessStore
	machineStore storage.MachineStore
	logStore     storage.LogStore
	broker       *events.Broker
	logger       *slog.Logger
	pollTimeout  time.Duration
	now          func() time.Time
}

type QueueServiceConfig struct {
	PollTimeout time.Duration
}

func NewQueueService(
	queue storage.Queue,
	processStore storage.ProcessStore,
	machineStore storage.MachineStore,
	logStore storage.LogStore,
	broker *events.Broker,
	cfg QueueServiceConfig,
	logger *slog.Logger,
) *QueueService {

	timeout := cfg.PollTimeout
	if timeout == 0 {
		timeout = 2 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &QueueService{
		queue:        queue,
		processStore: processStore,
		machineStore: machineStore,
		logStore:     logStore,
		broker:       broker,
		logger:       logger.With("service", "queue"),
		pollTimeout:  timeout,
		now:          time.Now,
	}
}

// QueueName - ключ очереди машины для приоритета
func QueueName(machineID string, priority models.Priority) string {
	return fmt.Sprintf("executions:%s:%s", machineID, priority)
}

func machineQueues(machineID string) []string {
	names := make([]string, 0, len(models.Priorities))
	for _, p := range models.Priorities {
		names = append(names, QueueName(machineID, p))
	}
	return names
}

// Enqueue кладет выполнение процесса в очередь его машины
func (s *QueueService) Enqueue(ctx context.Context, process *models.Process, params map[string]any, priority models.Priority) (*models.Execution, error) {
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, validationError("priority", fmt.Sprintf("unknown priority %q", priority))
	}

	execution := &models.Execution{
		ID:          uuidutil.NewWithPrefix("exec"),
		ProcessID:   process.ID,
		ProcessName: process.Name,
		ProcessType: process.Type,
		MachineID:   process.MachineID,
		Parameters:  params,
		Priority:    priority,
		QueuedAt:    s.now(),
	}

	payload, err := json.Marshal(execution)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution: %w", err)
	}

	queueName := QueueName(process.MachineID, priority)
	if err := s.queue.Push(ctx, queueName, payload); err != nil {
		s.logger.Error("failed to push execution to queue",
			"error", err,
			"queue", queueName,
			"process_id", process.ID,
		)
		return nil, fmt.Errorf("failed to enqueue execution: %w", err)
	}

	metrics.ExecutionsQueued.WithLabelValues(string(priority)).Inc()
	appendLog(ctx, s.logStore, s.logger, process.ID, models.LogLevelInfo,
		fmt.Sprintf("Execution %s queued with %s priority", execution.ID, priority))
	s.broker.Publish(ctx, events.ExecutionQueued, execution.ID, execution)

	s.logger.Info("execution queued",
		"execution_id", execution.ID,
		"process_id", process.ID,
		"machine_id", process.MachineID,
		"priority", priority,
	)
	return execution, nil
}

// ExecuteProcess ставит процесс в очередь; неизвестный процесс дает статус failed
func (s *QueueService) ExecuteProcess(ctx context.Context, req *models.ExecutionRequest) (*models.ExecutionResponse, error) {
	s.logger.Info("execute process requested",
		"process_id", req.ProcessID,
		"priority", req.Priority,
	)

	process, err := s.processStore.GetByID(ctx, req.ProcessID)
	if err != nil {
		s.logger.Error("failed to get process for execution", "error", err, "process_id", req.ProcessID)
		return nil, fmt.Errorf("failed to get process: %w", err)
	}

	if process == nil {
		s.logger.Warn("execute failed: process not found", "process_id", req.ProcessID)
		return &models.ExecutionResponse{
			ExecutionID: "",
			Status:      models.ExecutionStatusFailed,
			Message:     "Process not found",
		}, nil
	}

	execution, err := s.Enqueue(ctx, process, req.Parameters, req.Priority)
	if err != nil {
		return nil, err
	}

	return &models.ExecutionResponse{
		ExecutionID: execution.ID,
		Status:      models.ExecutionStatusQueued,
		Message: fmt.Sprintf("Process %s queued for execution with parameters: %s",
			process.Name, paramsJSON(req.Parameters)),
	}, nil
}

// NextExecution забирает следующее выполнение машины: сначала high, потом medium и low.
// nil, nil если очередь пуста.
func (s *QueueService) NextExecution(ctx context.Context, machineID string) (*models.Execution, error) {
	machine, err := s.machineStore.GetByID(ctx, machineID)
	if err != nil {
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}
	if machine == nil {
		s.logger.Warn("execution requested for unknown machine", "machine_id", machineID)
		return nil, ErrMachineNotFound
	}

	payload, err := s.queue.Pop(ctx, machineQueues(machineID), s.pollTimeout)
	if err != nil {
		s.logger.Error("failed to pop execution", "error", err, "machine_id", machineID)
		return nil, fmt.Errorf("failed to pop execution: %w", err)
	}

	if payload == nil {
		s.logger.Debug("no executions for machine", "machine_id", machineID)
		return nil, nil
	}

	var execution models.Execution
	if err := json.Unmarshal(payload, &execution); err != nil {
		s.logger.Error("failed to unmarshal execution",
			"error", err,
			"machine_id", machineID,
			"payload", string(payload),
		)
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}

	if err := s.markStarted(ctx, &execution); err != nil {
		return nil, err
	}

	s.logger.Info("execution handed to worker",
		"execution_id", execution.ID,
		"process_id", execution.ProcessID,
		"machine_id", machineID,
	)
	return &execution, nil
}

// markStarted переводит процесс в running, если воркер взял его без назначения
func (s *QueueService) markStarted(ctx context.Context, execution *models.Execution) error {
	var started bool
	process, err := s.processStore.Update(ctx, execution.ProcessID, func(p *models.Process) error {
		if p.Status == models.ProcessStatusRunning {
			return nil
		}
		started = true
		p.Status = models.ProcessStatusRunning
		p.MachineID = execution.MachineID
		p.StartTime = s.now()
		p.EndTime = nil
		p.Duration = ""
		if execution.Parameters != nil {
			p.Parameters = execution.Parameters
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	if process == nil {
		s.logger.Warn("queued execution references missing process",
			"execution_id", execution.ID,
			"process_id", execution.ProcessID,
		)
		return nil
	}

	appendLog(ctx, s.logStore, s.logger, process.ID, models.LogLevelInfo,
		fmt.Sprintf("Execution %s started on %s", execution.ID, execution.MachineID))

	if !started {
		return nil
	}

	if _, err := s.machineStore.Update(ctx, execution.MachineID, startOnMachine); err != nil {
		return fmt.Errorf("failed to update machine: %w", err)
	}
	return nil
}

// Stats суммирует длины очередей по всем известным машинам
func (s *QueueService) Stats(ctx context.Context) (*models.QueueStats, error) {
	machines, err := s.machineStore.List(ctx, models.MachineFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	stats := &models.QueueStats{Machines: len(machines), Timestamp: s.now()}
	for _, machine := range machines {
		for _, priority := range models.Priorities {
			length, err := s.queue.Length(ctx, QueueName(machine.ID, priority))
			if err != nil {
				s.logger.Error("failed to get queue length",
					"error", err,
					"machine_id", machine.ID,
					"priority", priority,
				)
				return nil, fmt.Errorf("failed to get queue length: %w", err)
			}

			switch priority {
			case models.PriorityHigh:
				stats.High += length
			case models.PriorityMedium:
				stats.Medium += length
			case models.PriorityLow:
				stats.Low += length
			}
		}
	}
	stats.Total = stats.High + stats.Medium + stats.Low
	return stats, nil
}

// startOnMachine - машина получила еще один запущенный процесс
func startOnMachine(m *models.Machine) error {
	if m.Status == models.MachineStatusIdle {
		m.Status = models.MachineStatusActive
	}
	m.ProcessCount++
	return nil
}

func paramsJSON(params map[string]any) string {
	if params == nil {
		return "{}"
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

func appendLog(ctx context.Context, store storage.LogStore, logger *slog.Logger, processID string, level models.LogLevel, message string) {
	entry := &models.ProcessLog{
		ID:        uuidutil.NewWithPrefix("log"),
		ProcessID: processID,
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
	}
	if err := store.Append(ctx, entry); err != nil {
		logger.Error("failed to append process log", "error", err, "process_id", processID)
	}
}
