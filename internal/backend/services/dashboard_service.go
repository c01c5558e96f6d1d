package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"Orchestrator/internal/backend/metrics"
	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/backend/storage"
)

const overviewSize = 5

type DashboardService struct {
	machineStore storage.MachineStore
	processStore storage.ProcessStore
	agentStore   storage.AgentStore
	queue        *QueueService
	logger       *slog.Logger
}

func NewDashboardService(
	machineStore storage.MachineStore,
	processStore storage.ProcessStore,
	agentStore storage.AgentStore,
	queue *QueueService,
	logger *slog.Logger,
) *DashboardService {

	if logger == nil {
		logger = slog.Default()
	}

	return &DashboardService{
		machineStore: machineStore,
		processStore: processStore,
		agentStore:   agentStore,
		queue:        queue,
		logger:       logger.With("service", "dashboard"),
	}
}

func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	machines, err := s.machineStore.List(ctx, models.MachineFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	processes, err := s.processStore.List(ctx, models.ProcessFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	agents, err := s.agentStore.List(ctx, models.AgentFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	stats := &models.DashboardStats{
		TotalMachines:  len(machines),
		TotalProcesses: len(processes),
		TotalAgents:    len(agents),
		Timestamp:      time.Now(),
	}

	for _, m := range machines {
		switch m.Status {
		case models.MachineStatusActive:
			stats.ActiveMachines++
		case models.MachineStatusIdle:
			stats.IdleMachines++
		case models.MachineStatusError:
			stats.ErrorMachines++
		case models.MachineStatusOffline:
			stats.OfflineMachines++
		}
	}

	for _, p := range processes {
		switch p.Status {
		case models.ProcessStatusRunning:
			stats.RunningProcesses++
		case models.ProcessStatusCompleted:
			stats.CompletedProcesses++
		case models.ProcessStatusFailed:
			stats.FailedProcesses++
		case models.ProcessStatusPending:
			stats.PendingProcesses++
		case models.ProcessStatusStopped:
			stats.StoppedProcesses++
		}
	}

	for _, a := range agents {
		switch a.Status {
		case models.AgentStatusActive:
			stats.ActiveAgents++
		case models.AgentStatusInactive:
			stats.InactiveAgents++
		case models.AgentStatusUpdating:
			stats.UpdatingAgents++
		case models.AgentStatusError:
			stats.ErrorAgents++
		}
	}

	if s.queue != nil {
		queueStats, err := s.queue.Stats(ctx)
		if err != nil {
			// счетчики важнее длины очереди
			s.logger.Warn("queue stats unavailable", "error", err)
		} else {
			stats.QueuedExecutions = queueStats.Total
		}
	}

	updateGauges(stats)
	return stats, nil
}

func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardOverview, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, err
	}

	processes, err := s.processStore.List(ctx, models.ProcessFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	machines, err := s.machineStore.List(ctx, models.MachineFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	return &models.DashboardOverview{
		Stats:           stats,
		RecentProcesses: processes[:min(overviewSize, len(processes))],
		Machines:        machines[:min(overviewSize, len(machines))],
	}, nil
}

func updateGauges(stats *models.DashboardStats) {
	metrics.MachinesByStatus.WithLabelValues(string(models.MachineStatusActive)).Set(float64(stats.ActiveMachines))
	metrics.MachinesByStatus.WithLabelValues(string(models.MachineStatusIdle)).Set(float64(stats.IdleMachines))
	metrics.MachinesByStatus.WithLabelValues(string(models.MachineStatusError)).Set(float64(stats.ErrorMachines))
	metrics.MachinesByStatus.WithLabelValues(string(models.MachineStatusOffline)).Set(float64(stats.OfflineMachines))

	metrics.ProcessesByStatus.WithLabelValues(string(models.ProcessStatusRunning)).Set(float64(stats.RunningProcesses))
	metrics.ProcessesByStatus.WithLabelValues(string(models.ProcessStatusCompleted)).Set(float64(stats.CompletedProcesses))
	metrics.ProcessesByStatus.WithLabelValues(string(models.ProcessStatusFailed)).Set(float64(stats.FailedProcesses))
	metrics.ProcessesByStatus.WithLabelValues(string(models.ProcessStatusPending)).Set(float64(stats.PendingProcesses))
	metrics.ProcessesByStatus.WithLabelValues(string(models.ProcessStatusStopped)).Set(float64(stats.StoppedProcesses))
}
