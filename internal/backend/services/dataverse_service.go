package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Orchestrator/internal/backend/dataverse"
	"Orchestrator/internal/backend/events"
	"Orchestrator/internal/backend/metrics"
	"Orchestrator/internal/backend/models"
	"Orchestrator/internal/backend/storage"
)

var ErrDataverseDisabled = errors.New("dataverse integration is disabled")

// DataverseClient - часть dataverse.Client, нужная синхронизации
type DataverseClient interface {
	Connect(ctx context.Context) error
	QueryRecords(ctx context.Context, entity string, q dataverse.Query) ([]map[string]any, error)
	CreateRecord(ctx context.Context, entity string, data map[string]any) (string, error)
	UpdateRecord(ctx context.Context, entity, id string, data map[string]any) error
	DeleteRecord(ctx context.Context, entity, id string) error
}

type DataverseStatus struct {
	Enabled   bool      `json:"enabled"`
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

type SyncResult struct {
	Entity  string `json:"entity"`
	Fetched int    `json:"fetched"`
	Saved   int    `json:"saved"`
	Skipped int    `json:"skipped"`
}

type DataverseService struct {
	client       DataverseClient
	machineStore storage.MachineStore
	processStore storage.ProcessStore
	broker       *events.Broker
	logger       *slog.Logger
}

// NewDataverseService принимает nil client, если интеграция выключена
func NewDataverseService(
	client DataverseClient,
	machineStore storage.MachineStore,
	processStore storage.ProcessStore,
	broker *events.Broker,
	logger *slog.Logger,
) *DataverseService {

	if logger == nil {
		logger = slog.Default()
	}

	return &DataverseService{
		client:       client,
		machineStore: machineStore,
		processStore: processStore,
		broker:       broker,
		logger:       logger.With("service", "dataverse"),
	}
}

func (s *DataverseService) Enabled() bool {
	return s.client != nil
}

func (s *DataverseService) TestConnection(ctx context.Context) *DataverseStatus {
	status := &DataverseStatus{Enabled: s.Enabled(), CheckedAt: time.Now()}
	if !s.Enabled() {
		return status
	}

	if err := s.client.Connect(ctx); err != nil {
		status.Error = err.Error()
		return status
	}
	status.Connected = true
	return status
}

// PullMachines загружает машины из Dataverse и сохраняет их поверх локальных
func (s *DataverseService) PullMachines(ctx context.Context, top int) (*SyncResult, error) {
	if !s.Enabled() {
		return nil, ErrDataverseDisabled
	}

	mapping := dataverse.MachineMapping
	records, err := s.client.QueryRecords(ctx, mapping.Entity, dataverse.Query{Select: mapping.Columns(), Top: top})
	if err != nil {
		s.logger.Error("failed to pull machines", "error", err)
		return nil, fmt.Errorf("failed to pull machines: %w", err)
	}

	result := &SyncResult{Entity: mapping.Entity, Fetched: len(records)}
	for _, record := range records {
		var machine models.Machine
		if err := dataverse.Decode(mapping, record, &machine); err != nil || machine.ID == "" {
			s.logger.Warn("skipping machine record", "error", err, "record", record)
			result.Skipped++
			continue
		}

		if machine.Status == "" || !machine.Status.IsValid() {
			machine.Status = models.MachineStatusIdle
		}
		if machine.CreatedAt.IsZero() {
			machine.CreatedAt = time.Now()
		}

		if err := s.machineStore.Upsert(ctx, &machine); err != nil {
			return nil, fmt.Errorf("failed to save machine %s: %w", machine.ID, err)
		}
		result.Saved++
	}

	s.finishSync(ctx, result, "pull")
	return result, nil
}

func (s *DataverseService) PullProcesses(ctx context.Context, top int) (*SyncResult, error) {
	if !s.Enabled() {
		return nil, ErrDataverseDisabled
	}

	mapping := dataverse.ProcessMapping
	records, err := s.client.QueryRecords(ctx, mapping.Entity, dataverse.Query{Select: mapping.Columns(), Top: top})
	if err != nil {
		s.logger.Error("failed to pull processes", "error", err)
		return nil, fmt.Errorf("failed to pull processes: %w", err)
	}

	result := &SyncResult{Entity: mapping.Entity, Fetched: len(records)}
	for _, record := range records {
		var process models.Process
		if err := dataverse.Decode(mapping, record, &process); err != nil || process.ID == "" {
			s.logger.Warn("skipping process record", "error", err, "record", record)
			result.Skipped++
			continue
		}

		if process.Status == "" || !process.Status.IsValid() {
			process.Status = models.ProcessStatusPending
		}
		if process.CreatedAt.IsZero() {
			process.CreatedAt = time.Now()
		}

		if err := s.processStore.Upsert(ctx, &process); err != nil {
			return nil, fmt.Errorf("failed to save process %s: %w", process.ID, err)
		}
		result.Saved++
	}

	s.finishSync(ctx, result, "pull")
	return result, nil
}

// PushMachine создает запись машины в Dataverse или обновляет уже выгруженную.
// Возвращает идентификатор удаленной записи и признак создания
func (s *DataverseService) PushMachine(ctx context.Context, id string) (string, bool, error) {
	if !s.Enabled() {
		return "", false, ErrDataverseDisabled
	}

	machine, err := s.machineStore.GetByID(ctx, id)
	if err != nil {
		return "", false, fmt.Errorf("failed to get machine: %w", err)
	}
	if machine == nil {
		return "", false, ErrMachineNotFound
	}

	mapping := dataverse.MachineMapping
	record, err := dataverse.Encode(mapping, machine)
	if err != nil {
		return "", false, err
	}

	remoteID, err := s.findRemote(ctx, mapping, id)
	if err != nil {
		return "", false, err
	}

	created := remoteID == ""
	if created {
		remoteID, err = s.client.CreateRecord(ctx, mapping.Entity, record)
	} else {
		err = s.client.UpdateRecord(ctx, mapping.Entity, remoteID, record)
	}
	if err != nil {
		s.logger.Error("failed to push machine", "error", err, "machine_id", id, "created", created)
		return "", false, fmt.Errorf("failed to push machine: %w", err)
	}

	s.finishSync(ctx, &SyncResult{Entity: mapping.Entity, Saved: 1}, "push")
	s.logger.Info("machine pushed to dataverse", "machine_id", id, "remote_id", remoteID, "created", created)
	return remoteID, created, nil
}

// RemoveMachine удаляет выгруженную запись машины из Dataverse; локальная машина не меняется
func (s *DataverseService) RemoveMachine(ctx context.Context, id string) error {
	if !s.Enabled() {
		return ErrDataverseDisabled
	}

	mapping := dataverse.MachineMapping
	remoteID, err := s.findRemote(ctx, mapping, id)
	if err != nil {
		return err
	}
	if remoteID == "" {
		return ErrRemoteRecordNotFound
	}

	if err := s.client.DeleteRecord(ctx, mapping.Entity, remoteID); err != nil {
		s.logger.Error("failed to remove machine", "error", err, "machine_id", id)
		return fmt.Errorf("failed to remove machine: %w", err)
	}

	s.logger.Info("machine removed from dataverse", "machine_id", id, "remote_id", remoteID)
	return nil
}

// findRemote ищет запись по ключевой колонке; "" - записи нет
func (s *DataverseService) findRemote(ctx context.Context, mapping dataverse.Mapping, id string) (string, error) {
	records, err := s.client.QueryRecords(ctx, mapping.Entity, dataverse.Query{
		Select: []string{mapping.Key()},
		Filter: mapping.KeyFilter(id),
		Top:    1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to look up %s %s: %w", mapping.Entity, id, err)
	}
	if len(records) == 0 {
		return "", nil
	}

	remoteID, _ := records[0][mapping.Key()].(string)
	return remoteID, nil
}

func (s *DataverseService) finishSync(ctx context.Context, result *SyncResult, direction string) {
	metrics.DataverseSynced.WithLabelValues(result.Entity, direction).Add(float64(result.Saved))
	s.broker.Publish(ctx, events.DataverseSynced, result.Entity, result)

	s.logger.Info("dataverse sync finished",
		"entity", result.Entity,
		"direction", direction,
		"fetched", result.Fetched,
		"saved", result.Saved,
		"skipped", result.Skipped,
	)
}
