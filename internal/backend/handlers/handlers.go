package handlers

import (
	"log/slog"

	"Orchestrator/internal/backend/dependencies"
	"Orchestrator/internal/backend/events"
	"Orchestrator/internal/backend/services"
)

type Handlers struct {
	machineService   *services.MachineService
	processService   *services.ProcessService
	queueService     *services.QueueService
	agentService     *services.AgentService
	dashboardService *services.DashboardService
	dataverseService *services.DataverseService
	broker           *events.Broker
	workerToken      string
	logger           *slog.Logger
}

func NewHandlers(container *dependencies.Container) *Handlers {
	return &Handlers{
		machineService:   container.MachineService,
		processService:   container.ProcessService,
		queueService:     container.QueueService,
		agentService:     container.AgentService,
		dashboardService: container.DashboardService,
		dataverseService: container.DataverseService,
		broker:           container.Broker,
		workerToken:      container.Config.Security.WorkerToken,
		logger:           container.Logger.With("component", "handlers"),
	}
}
