package services

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"Orchestrator/internal/backend/events"
	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/backend/storage"
	"Orchestrator/pkg/uuidutil"
)

type AgentService struct {
	agentStore   storage.AgentStore
	machineStore storage.MachineStore
	processStore storage.ProcessStore
	broker       *events.Broker
	logger       *slog.Logger
	now          func() time.Time
}

func NewAgentService(
	agentStore storage.AgentStore,
	machineStore storage.MachineStore,
	processStore storage.ProcessStore,
	broker *events.Broker,
	logger *slog.Logger,
) *AgentService {

	if logger == nil {
		logger = slog.Default()
	}

	return &AgentService{
		agentStore:   agentStore,
		machineStore: machineStore,
		processStore: processStore,
		broker:       broker,
		logger:       logger.With("service", "agents"),
		now:          time.Now,
	}
}

func (s *AgentService) ListAgents(ctx context.Context, filter models.AgentFilter) ([]*models.Agent, error) {
	agents, err := s.agentStore.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list agents", "error", err)
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

func (s *AgentService) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	agent, err := s.agentStore.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get agent", "error", err, "agent_id", id)
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}

	if agent == nil {
		return nil, ErrAgentNotFound
	}
	return agent, nil
}

// AddAgent развертывает агента на одной или нескольких машинах
func (s *AgentService) AddAgent(ctx context.Context, form *models.NewAgentForm) (*models.Agent, error) {
	s.logger.Info("adding agent",
		"name", form.Name,
		"type", form.Type,
		"machines", form.MachineIDs,
	)

	name := strings.TrimSpace(form.Name)
	agentType := strings.TrimSpace(form.Type)
	machineIDs := uniqueIDs(form.MachineIDs)

	if name == "" || agentType == "" || len(machineIDs) == 0 {
		s.logger.Warn("add agent failed: required fields missing",
			"name", name,
			"type", agentType,
			"machines_count", len(machineIDs),
		)
		return nil, validationError("", "Please fill in all required fields")
	}

	for _, id := range machineIDs {
		machine, err := s.machineStore.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get machine: %w", err)
		}
		if machine == nil {
			s.logger.Warn("add agent failed: machine not found", "machine_id", id)
			return nil, validationError("machine_ids", fmt.Sprintf("Machine %s not found", id))
		}
	}

	now := s.now()
	agent := &models.Agent{
		ID:            uuidutil.NewWithPrefix("agent"),
		Name:          name,
		Status:        models.AgentStatusActive,
		Version:       models.DefaultAgentVersion,
		Type:          agentType,
		MachineIDs:    machineIDs,
		LastUpdated:   now,
		Description:   strings.TrimSpace(form.Description),
		Configuration: cleanConfiguration(form.Configuration),
		CreatedAt:     now,
	}

	if err := s.agentStore.Create(ctx, agent); err != nil {
		s.logger.Error("failed to create agent in storage", "error", err, "name", name)
		return nil, fmt.Errorf("failed to add agent: %w", err)
	}

	s.broker.Publish(ctx, events.AgentCreated, agent.ID, agent)

	s.logger.Info("agent added successfully",
		"agent_id", agent.ID,
		"type", agent.Type,
		"machines_count", len(agent.MachineIDs),
		"config_keys", len(agent.Configuration),
	)
	return agent, nil
}

// TypeCounts - число агентов по типу, по убыванию, при равенстве по имени типа
func (s *AgentService) TypeCounts(ctx context.Context) ([]models.AgentTypeCount, error) {
	agents, err := s.ListAgents(ctx, models.AgentFilter{})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, agent := range agents {
		counts[agent.Type]++
	}

	result := make([]models.AgentTypeCount, 0, len(counts))
	for agentType, count := range counts {
		result = append(result, models.AgentTypeCount{Type: agentType, Count: count})
	}

	slices.SortFunc(result, func(a, b models.AgentTypeCount) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Type, b.Type)
	})
	return result, nil
}

func (s *AgentService) UpdateConfiguration(ctx context.Context, id string, configuration map[string]any) (*models.Agent, error) {
	s.logger.Info("updating agent configuration", "agent_id", id, "keys", len(configuration))

	agent, err := s.agentStore.Update(ctx, id, func(a *models.Agent) error {
		a.Configuration = cleanConfiguration(configuration)
		a.LastUpdated = s.now()
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update agent configuration", "error", err, "agent_id", id)
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}

	s.broker.Publish(ctx, events.AgentUpdated, agent.ID, agent)
	return agent, nil
}

// UpdateStatus меняет статус агента; перезапуск переводит его в updating
func (s *AgentService) UpdateStatus(ctx context.Context, id string, status models.AgentStatus) (*models.Agent, error) {
	s.logger.Info("updating agent status", "agent_id", id, "status", status)

	if !status.IsValid() {
		return nil, validationError("status", fmt.Sprintf("unknown agent status %q", status))
	}

	agent, err := s.agentStore.Update(ctx, id, func(a *models.Agent) error {
		a.Status = status
		a.LastUpdated = s.now()
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update agent status", "error", err, "agent_id", id)
		return nil, fmt.Errorf("failed to update agent: %w", err)
	}
	if agent == nil {
		return nil, ErrAgentNotFound
	}

	s.broker.Publish(ctx, events.AgentUpdated, agent.ID, agent)
	return agent, nil
}

// AgentMachines возвращает машины агента; удаленные из хранилища пропускаются
func (s *AgentService) AgentMachines(ctx context.Context, id string) ([]*models.Machine, error) {
	agent, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	machines := make([]*models.Machine, 0, len(agent.MachineIDs))
	for _, machineID := range agent.MachineIDs {
		machine, err := s.machineStore.GetByID(ctx, machineID)
		if err != nil {
			return nil, fmt.Errorf("failed to get machine: %w", err)
		}
		if machine == nil {
			s.logger.Warn("agent references unknown machine", "agent_id", id, "machine_id", machineID)
			continue
		}
		machines = append(machines, machine)
	}
	return machines, nil
}

func (s *AgentService) AgentProcesses(ctx context.Context, id string) ([]*models.Process, error) {
	agent, err := s.GetAgent(ctx, id)
	if err != nil {
		return nil, err
	}

	processes, err := s.processStore.List(ctx, models.ProcessFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	return slices.DeleteFunc(processes, func(p *models.Process) bool {
		return !agent.OnMachine(p.MachineID)
	}), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

// cleanConfiguration обрезает ключи и выбрасывает пустые
func cleanConfiguration(configuration map[string]any) map[string]any {
	result := make(map[string]any, len(configuration))
	for _, key := range slices.Sorted(maps.Keys(configuration)) {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		result[trimmed] = configuration[key]
	}
	return result
}
