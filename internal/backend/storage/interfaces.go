package storage

import (
	"context"
	"errors"
	"time"

	"Orchestrator/internal/backend/models"
)

var ErrDuplicateID = errors.New("record with this id already exists")

// Get* возвращают nil, nil если записи нет.
// Update применяет fn к записи атомарно; если записи нет, возвращает nil, nil.

// MachineStore интерфейс для работы с машинами
type MachineStore interface {
	Create(ctx context.Context, machine *models.Machine) error
	GetByID(ctx context.Context, id string) (*models.Machine, error)
	List(ctx context.Context, filter models.MachineFilter) ([]*models.Machine, error)
	Update(ctx context.Context, id string, fn func(*models.Machine) error) (*models.Machine, error)
	Upsert(ctx context.Context, machine *models.Machine) error
}

// ProcessStore интерфейс для работы с процессами
type ProcessStore interface {
	Create(ctx context.Context, process *models.Process) error
	GetByID(ctx context.Context, id string) (*models.Process, error)
	List(ctx context.Context, filter models.ProcessFilter) ([]*models.Process, error)
	Update(ctx context.Context, id string, fn func(*models.Process) error) (*models.Process, error)
	Upsert(ctx context.Context, process *models.Process) error
}

// AgentStore интерфейс для работы с агентами
type AgentStore interface {
	Create(ctx context.Context, agent *models.Agent) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)
	List(ctx context.Context, filter models.AgentFilter) ([]*models.Agent, error)
	Update(ctx context.Context, id string, fn func(*models.Agent) error) (*models.Agent, error)
}

// LogStore хранит логи процессов, List отдает сначала новые
type LogStore interface {
	Append(ctx context.Context, entry *models.ProcessLog) error
	List(ctx context.Context, processID string, level models.LogLevel, limit int) ([]*models.ProcessLog, error)
}

// Queue интерфейс для работы с очередью
type Queue interface {
	Push(ctx context.Context, queueName string, payload []byte) error
	// Pop ждет до timeout и забирает элемент из первой непустой очереди; nil, nil если пусто
	Pop(ctx context.Context, queueNames []string, timeout time.Duration) ([]byte, error)
	Length(ctx context.Context, queueName string) (int64, error)
	Close() error
}

// Stores - набор хранилищ одного драйвера
type Stores struct {
	Machines  MachineStore
	Processes ProcessStore
	Agents    AgentStore
	Logs      LogStore
}
