package handler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"Orchestrator/internal/backend/models"
	client "Orchestrator/internal/worker/clients"

	"golang.org/x/sync/errgroup"
)

const (
	IDLE_DELAY  = time.Second
	ERROR_DELAY = time.Second * 5

	submitTimeout = 10 * time.Second
)

// UsageCollector - источник загрузки хоста для heartbeat
type UsageCollector interface {
	Usage(ctx context.Context) (models.HeartbeatRequest, error)
}

type Config struct {
	HeartbeatInterval time.Duration
	IdleDelay         time.Duration
	ErrorDelay        time.Duration
}

type WorkerHandler struct {
	api       *client.APIClient
	executor  *ExecutionHandler
	collector UsageCollector
	config    Config
	logger    *slog.Logger
}

func NewWorkerHandler(logger *slog.Logger, api *client.APIClient, executor *ExecutionHandler, collector UsageCollector, config Config) *WorkerHandler {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 15 * time.Second
	}
	if config.IdleDelay <= 0 {
		config.IdleDelay = IDLE_DELAY
	}
	if config.ErrorDelay <= 0 {
		config.ErrorDelay = ERROR_DELAY
	}

	return &WorkerHandler{
		api:       api,
		executor:  executor,
		collector: collector,
		config:    config,
		logger:    logger.With("machine_id", api.MachineID()),
	}
}

// Run крутит heartbeat и разбор очереди до отмены ctx
func (s *WorkerHandler) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.heartbeatLoop(gctx)
		return nil
	})

	g.Go(func() error {
		s.executionLoop(gctx)
		return nil
	})

	err := g.Wait()
	s.logger.Info("Stopping worker due to context cancellation")
	return err
}

func (s *WorkerHandler) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		s.sendHeartbeat(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *WorkerHandler) sendHeartbeat(ctx context.Context) {
	usage, err := s.collector.Usage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("Failed to collect host usage, sending liveness only", "error", err)
		usage = models.HeartbeatRequest{UsageUnavailable: true}
	}

	if err := s.api.Heartbeat(ctx, usage); err != nil {
		switch {
		case ctx.Err() != nil:
		case errors.Is(err, client.ErrNotRegistered):
			s.logger.Error("Machine is not registered in backend")
		default:
			s.logger.Warn("Failed to send heartbeat", "error", err)
		}
		return
	}

	s.logger.Debug("Heartbeat sent", "cpu", usage.CPUUsage, "memory", usage.MemoryUsage)
}

func (s *WorkerHandler) executionLoop(ctx context.Context) {
	for {
		delay := s.processNext(ctx)
		if !sleep(ctx, delay) {
			return
		}
	}
}

// processNext выполняет одно execution и возвращает паузу перед следующим запросом
func (s *WorkerHandler) processNext(ctx context.Context) time.Duration {
	execution, err := s.api.FetchExecution(ctx)
	if err != nil {
		switch {
		case ctx.Err() != nil:
			return 0
		case errors.Is(err, client.ErrNoExecutions):
			s.logger.Debug("no executions")
			return s.config.IdleDelay
		default:
			s.logger.Error("Failed to fetch execution", "error", err)
			return s.config.ErrorDelay
		}
	}

	s.logger.Info("Execution received",
		"execution_id", execution.ID,
		"process_id", execution.ProcessID,
		"priority", execution.Priority,
	)

	result := s.executor.ExecuteExecution(ctx, execution)

	// результат отправляем даже при остановке воркера
	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), submitTimeout)
	defer cancel()

	if err := s.api.SubmitResult(submitCtx, execution.ProcessID, result); err != nil {
		s.logger.Error("Failed to submit result", "execution_id", execution.ID, "error", err)
		return s.config.ErrorDelay
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
