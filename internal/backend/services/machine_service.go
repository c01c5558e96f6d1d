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
	"Orchestrator/pkg/validator"
)

type MachineService struct {
	machineStore storage.MachineStore
	processStore storage.ProcessStore
	broker       *events.Broker
	logger       *slog.Logger
	offlineAfter time.Duration
	sweep        time.Duration
	now          func() time.Time
}

type MachineServiceConfig struct {
	// 0 отключает перевод в offline
	OfflineAfter  time.Duration
	SweepInterval time.Duration
}

func NewMachineService(
	machineStore storage.MachineStore,
	processStore storage.ProcessStore,
	broker *events.Broker,
	cfg MachineServiceConfig,
	logger *slog.Logger,
) *MachineService {

	sweep := cfg.SweepInterval
	if sweep == 0 {
		sweep = 30 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &MachineService{
		machineStore: machineStore,
		processStore: processStore,
		broker:       broker,
		logger:       logger.With("service", "machines"),
		offlineAfter: cfg.OfflineAfter,
		sweep:        sweep,
		now:          time.Now,
	}
}

func (s *MachineService) ListMachines(ctx context.Context, filter models.MachineFilter) ([]*models.Machine, error) {
	machines, err := s.machineStore.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list machines", "error", err)
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}

	s.logger.Debug("machines listed",
		"count", len(machines),
		"status", filter.Status,
		"search", filter.Search,
	)
	return machines, nil
}

func (s *MachineService) GetMachine(ctx context.Context, id string) (*models.Machine, error) {
	machine, err := s.machineStore.GetByID(ctx, id)
	if err != nil {
		s.logger.Error("failed to get machine", "error", err, "machine_id", id)
		return nil, fmt.Errorf("failed to get machine: %w", err)
	}

	if machine == nil {
		s.logger.Debug("machine not found", "machine_id", id)
		return nil, ErrMachineNotFound
	}
	return machine, nil
}

// AddMachine регистрирует машину из формы
func (s *MachineService) AddMachine(ctx context.Context, form *models.NewMachineForm) (*models.Machine, error) {
	s.logger.Info("adding machine",
		"name", form.Name,
		"ip_address", form.IPAddress,
		"status", form.Status,
	)

	name := strings.TrimSpace(form.Name)
	if name == "" {
		s.logger.Warn("add machine failed: empty name")
		return nil, validationError("name", "Machine name is required")
	}

	ip := strings.TrimSpace(form.IPAddress)
	if !validator.ValidateIPv4(ip) {
		s.logger.Warn("add machine failed: invalid ip address", "ip_address", form.IPAddress)
		return nil, validationError("ip_address", "Please enter a valid IPv4 address")
	}

	status := form.Status
	if status == "" {
		status = models.MachineStatusIdle
	}
	if !status.IsValid() {
		s.logger.Warn("add machine failed: invalid status", "status", form.Status)
		return nil, validationError("status", fmt.Sprintf("unknown machine status %q", form.Status))
	}

	now := s.now()
	machine := &models.Machine{
		ID:          uuidutil.NewWithPrefix("machine"),
		Name:        name,
		Status:      status,
		IPAddress:   ip,
		LastSeen:    now,
		Description: strings.TrimSpace(form.Description),
		CreatedAt:   now,
	}

	if err := s.machineStore.Create(ctx, machine); err != nil {
		s.logger.Error("failed to create machine in storage",
			"error", err,
			"name", machine.Name,
		)
		return nil, fmt.Errorf("failed to add machine: %w", err)
	}

	metrics.MachinesAdded.Inc()
	s.broker.Publish(ctx, events.MachineCreated, machine.ID, machine)

	s.logger.Info("machine added successfully",
		"machine_id", machine.ID,
		"name", machine.Name,
		"status", machine.Status,
	)
	return machine, nil
}

func (s *MachineService) ProcessesForMachine(ctx context.Context, id string) ([]*models.Process, error) {
	if _, err := s.GetMachine(ctx, id); err != nil {
		return nil, err
	}

	processes, err := s.processStore.List(ctx, models.ProcessFilter{MachineID: id})
	if err != nil {
		s.logger.Error("failed to list machine processes", "error", err, "machine_id", id)
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}
	return processes, nil
}

// Heartbeat обновляет last_seen и загрузку; offline машина возвращается в строй
func (s *MachineService) Heartbeat(ctx context.Context, id string, req *models.HeartbeatRequest) (*models.Machine, error) {
	s.logger.Debug("machine heartbeat",
		"machine_id", id,
		"cpu", req.CPUUsage,
		"memory", req.MemoryUsage,
	)

	var revived bool
	machine, err := s.machineStore.Update(ctx, id, func(m *models.Machine) error {
		m.LastSeen = s.now()
		if !req.UsageUnavailable {
			m.CPUUsage = clampPercent(req.CPUUsage)
			m.MemoryUsage = clampPercent(req.MemoryUsage)
		}

		if m.Status == models.MachineStatusOffline {
			revived = true
			if m.ProcessCount > 0 {
				m.Status = models.MachineStatusActive
			} else {
				m.Status = models.MachineStatusIdle
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to update machine heartbeat", "error", err, "machine_id", id)
		return nil, fmt.Errorf("failed to update heartbeat: %w", err)
	}

	if machine == nil {
		s.logger.Warn("heartbeat from unknown machine", "machine_id", id)
		return nil, ErrMachineNotFound
	}

	if revived {
		s.logger.Info("machine is back online", "machine_id", id, "status", machine.Status)
		s.broker.Publish(ctx, events.MachineUpdated, machine.ID, machine)
	}
	return machine, nil
}

// MarkStaleOffline переводит в offline машины без heartbeat дольше offlineAfter
func (s *MachineService) MarkStaleOffline(ctx context.Context) (int, error) {
	if s.offlineAfter <= 0 {
		return 0, nil
	}

	machines, err := s.machineStore.List(ctx, models.MachineFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list machines: %w", err)
	}

	deadline := s.now().Add(-s.offlineAfter)
	marked := 0

	for _, candidate := range machines {
		if candidate.Status == models.MachineStatusOffline || !candidate.LastSeen.Before(deadline) {
			continue
		}

		machine, err := s.machineStore.Update(ctx, candidate.ID, func(m *models.Machine) error {
			// heartbeat мог прийти между List и Update
			if m.LastSeen.Before(deadline) {
				m.Status = models.MachineStatusOffline
			}
			return nil
		})
		if err != nil {
			s.logger.Error("failed to mark machine offline", "error", err, "machine_id", candidate.ID)
			continue
		}
		if machine == nil || machine.Status != models.MachineStatusOffline {
			continue
		}

		marked++
		s.logger.Warn("machine marked offline",
			"machine_id", machine.ID,
			"last_seen", machine.LastSeen,
		)
		s.broker.Publish(ctx, events.MachineOffline, machine.ID, machine)
	}

	return marked, nil
}

// RunMaintenance периодически вызывает MarkStaleOffline до отмены ctx
func (s *MachineService) RunMaintenance(ctx context.Context) error {
	if s.offlineAfter <= 0 {
		s.logger.Info("offline sweep disabled")
		<-ctx.Done()
		return nil
	}

	s.logger.Info("starting offline sweep",
		"offline_after", s.offlineAfter,
		"interval", s.sweep,
	)

	ticker := time.NewTicker(s.sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("offline sweep stopped")
			return nil
		case <-ticker.C:
			if _, err := s.MarkStaleOffline(ctx); err != nil {
				s.logger.Error("offline sweep failed", "error", err)
			}
		}
	}
}

func clampPercent(v float64) float64 {
	return min(max(v, 0), 100)
}
