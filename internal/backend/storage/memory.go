package storage

import (
	"context"
	"slices"
	"sync"

	"Orchestrator/internal/backend/models"
)

// memoryTable хранит записи в порядке вставки, наружу отдаются только копии
type memoryTable[T any] struct {
	mu    sync.RWMutex
	order []string
	rows  map[string]*T
	key   func(*T) string
	clone func(*T) *T
}

func newMemoryTable[T any](key func(*T) string, clone func(*T) *T) *memoryTable[T] {
	return &memoryTable[T]{
		rows:  make(map[string]*T),
		key:   key,
		clone: clone,
	}
}

func (t *memoryTable[T]) insert(v *T) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.key(v)
	if _, exists := t.rows[id]; exists {
		return ErrDuplicateID
	}

	t.rows[id] = t.clone(v)
	t.order = append(t.order, id)
	return nil
}

func (t *memoryTable[T]) upsert(v *T) {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.key(v)
	if _, exists := t.rows[id]; !exists {
		t.order = append(t.order, id)
	}
	t.rows[id] = t.clone(v)
}

func (t *memoryTable[T]) get(id string) *T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	row, ok := t.rows[id]
	if !ok {
		return nil
	}
	return t.clone(row)
}

func (t *memoryTable[T]) list(match func(*T) bool) []*T {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make([]*T, 0, len(t.order))
	for _, id := range t.order {
		row := t.rows[id]
		if match == nil || match(row) {
			result = append(result, t.clone(row))
		}
	}
	return result
}

func (t *memoryTable[T]) update(id string, fn func(*T) error) (*T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	row, ok := t.rows[id]
	if !ok {
		return nil, nil
	}

	working := t.clone(row)
	if err := fn(working); err != nil {
		return nil, err
	}

	t.rows[id] = working
	return t.clone(working), nil
}

// NewMemoryStores создает хранилища в памяти; состояние живет до перезапуска
func NewMemoryStores() *Stores {
	return &Stores{
		Machines:  &memoryMachineStore{table: newMemoryTable(func(m *models.Machine) string { return m.ID }, (*models.Machine).Clone)},
		Processes: &memoryProcessStore{table: newMemoryTable(func(p *models.Process) string { return p.ID }, (*models.Process).Clone)},
		Agents:    &memoryAgentStore{table: newMemoryTable(func(a *models.Agent) string { return a.ID }, (*models.Agent).Clone)},
		Logs:      &memoryLogStore{},
	}
}

type memoryMachineStore struct {
	table *memoryTable[models.Machine]
}

func (s *memoryMachineStore) Create(ctx context.Context, machine *models.Machine) error {
	return s.table.insert(machine)
}

func (s *memoryMachineStore) GetByID(ctx context.Context, id string) (*models.Machine, error) {
	return s.table.get(id), nil
}

func (s *memoryMachineStore) List(ctx context.Context, filter models.MachineFilter) ([]*models.Machine, error) {
	return s.table.list(filter.Matches), nil
}

func (s *memoryMachineStore) Update(ctx context.Context, id string, fn func(*models.Machine) error) (*models.Machine, error) {
	return s.table.update(id, fn)
}

func (s *memoryMachineStore) Upsert(ctx context.Context, machine *models.Machine) error {
	s.table.upsert(machine)
	return nil
}

type memoryProcessStore struct {
	table *memoryTable[models.Process]
}

func (s *memoryProcessStore) Create(ctx context.Context, process *models.Process) error {
	return s.table.insert(process)
}

func (s *memoryProcessStore) GetByID(ctx context.Context, id string) (*models.Process, error) {
	return s.table.get(id), nil
}

func (s *memoryProcessStore) List(ctx context.Context, filter models.ProcessFilter) ([]*models.Process, error) {
	return s.table.list(filter.Matches), nil
}

func (s *memoryProcessStore) Update(ctx context.Context, id string, fn func(*models.Process) error) (*models.Process, error) {
	return s.table.update(id, fn)
}

func (s *memoryProcessStore) Upsert(ctx context.Context, process *models.Process) error {
	s.table.upsert(process)
	return nil
}

type memoryAgentStore struct {
	table *memoryTable[models.Agent]
}

func (s *memoryAgentStore) Create(ctx context.Context, agent *models.Agent) error {
	return s.table.insert(agent)
}

func (s *memoryAgentStore) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	return s.table.get(id), nil
}

func (s *memoryAgentStore) List(ctx context.Context, filter models.AgentFilter) ([]*models.Agent, error) {
	return s.table.list(filter.Matches), nil
}

func (s *memoryAgentStore) Update(ctx context.Context, id string, fn func(*models.Agent) error) (*models.Agent, error) {
	return s.table.update(id, fn)
}

type memoryLogStore struct {
	mu      sync.RWMutex
	entries []*models.ProcessLog
}

func (s *memoryLogStore) Append(ctx context.Context, entry *models.ProcessLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *memoryLogStore) List(ctx context.Context, processID string, level models.LogLevel, limit int) ([]*models.ProcessLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.ProcessLog
	for i := len(s.entries) - 1; i >= 0; i-- {
		entry := s.entries[i]
		if entry.ProcessID != processID {
			continue
		}
		if level != "" && entry.Level != level {
			continue
		}
		copied := *entry
		result = append(result, &copied)
	}

	sortLogsNewestFirst(result)
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func sortLogsNewestFirst(entries []*models.ProcessLog) {
	slices.SortStableFunc(entries, func(a, b *models.ProcessLog) int {
		return b.Timestamp.Compare(a.Timestamp)
	})
}
