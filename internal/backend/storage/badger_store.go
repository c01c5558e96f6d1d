package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"Orchestrator/internal/backend/models"

	badger "github.com/dgraph-io/badger/v4"
)

const badgerConflictRetries = 3

func OpenBadger(path string, log *slog.Logger) (*badger.DB, error) {
	opts := badger.DefaultOptions(filepath.Clean(path))
	opts.Logger = nil
	opts = opts.WithValueLogFileSize(1 << 24)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger at %s: %w", path, err)
	}

	log.Info("Opened badger store", "path", path)
	return db, nil
}

func NewBadgerStores(db *badger.DB) *Stores {
	return &Stores{
		Machines: &badgerMachineStore{table: &badgerTable[models.Machine]{
			db:      db,
			prefix:  "machine:",
			key:     func(m *models.Machine) string { return m.ID },
			created: func(m *models.Machine) time.Time { return m.CreatedAt },
		}},
		Processes: &badgerProcessStore{table: &badgerTable[models.Process]{
			db:      db,
			prefix:  "process:",
			key:     func(p *models.Process) string { return p.ID },
			created: func(p *models.Process) time.Time { return p.CreatedAt },
		}},
		Agents: &badgerAgentStore{table: &badgerTable[models.Agent]{
			db:      db,
			prefix:  "agent:",
			key:     func(a *models.Agent) string { return a.ID },
			created: func(a *models.Agent) time.Time { return a.CreatedAt },
		}},
		Logs: &badgerLogStore{db: db},
	}
}

// badgerTable хранит записи как JSON под ключами "<prefix><id>"
type badgerTable[T any] struct {
	db      *badger.DB
	prefix  string
	key     func(*T) string
	created func(*T) time.Time
}

func (t *badgerTable[T]) recordKey(id string) []byte {
	return []byte(t.prefix + id)
}

func (t *badgerTable[T]) insert(v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return t.db.Update(func(txn *badger.Txn) error {
		key := t.recordKey(t.key(v))
		if _, err := txn.Get(key); err == nil {
			return ErrDuplicateID
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return txn.Set(key, data)
	})
}

func (t *badgerTable[T]) put(v *T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return t.db.Update(func(txn *badger.Txn) error {
		return txn.Set(t.recordKey(t.key(v)), data)
	})
}

func readJSON[T any](txn *badger.Txn, key []byte) (*T, error) {
	item, err := txn.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var out T
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &out)
	}); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *badgerTable[T]) get(id string) (*T, error) {
	var out *T
	err := t.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = readJSON[T](txn, t.recordKey(id))
		return err
	})
	return out, err
}

func (t *badgerTable[T]) list(match func(*T) bool) ([]*T, error) {
	result := make([]*T, 0)
	err := t.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(t.prefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var row T
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &row)
			}); err != nil {
				return err
			}
			if match == nil || match(&row) {
				result = append(result, &row)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(result, func(a, b *T) int {
		if c := t.created(a).Compare(t.created(b)); c != 0 {
			return c
		}
		if t.key(a) < t.key(b) {
			return -1
		}
		if t.key(a) > t.key(b) {
			return 1
		}
		return 0
	})
	return result, nil
}

func (t *badgerTable[T]) update(id string, fn func(*T) error) (*T, error) {
	var out *T
	var err error
	for attempt := 0; attempt < badgerConflictRetries; attempt++ {
		err = t.db.Update(func(txn *badger.Txn) error {
			row, err := readJSON[T](txn, t.recordKey(id))
			if err != nil || row == nil {
				out = nil
				return err
			}
			if err := fn(row); err != nil {
				return err
			}
			data, err := json.Marshal(row)
			if err != nil {
				return err
			}
			out = row
			return txn.Set(t.recordKey(id), data)
		})
		if !errors.Is(err, badger.ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

type badgerMachineStore struct {
	table *badgerTable[models.Machine]
}

func (s *badgerMachineStore) Create(ctx context.Context, machine *models.Machine) error {
	return s.table.insert(machine)
}

func (s *badgerMachineStore) GetByID(ctx context.Context, id string) (*models.Machine, error) {
	return s.table.get(id)
}

func (s *badgerMachineStore) List(ctx context.Context, filter models.MachineFilter) ([]*models.Machine, error) {
	return s.table.list(filter.Matches)
}

func (s *badgerMachineStore) Update(ctx context.Context, id string, fn func(*models.Machine) error) (*models.Machine, error) {
	return s.table.update(id, fn)
}

func (s *badgerMachineStore) Upsert(ctx context.Context, machine *models.Machine) error {
	return s.table.put(machine)
}

type badgerProcessStore struct {
	table *badgerTable[models.Process]
}

func (s *badgerProcessStore) Create(ctx context.Context, process *models.Process) error {
	return s.table.insert(process)
}

func (s *badgerProcessStore) GetByID(ctx context.Context, id string) (*models.Process, error) {
	return s.table.get(id)
}

func (s *badgerProcessStore) List(ctx context.Context, filter models.ProcessFilter) ([]*models.Process, error) {
	return s.table.list(filter.Matches)
}

func (s *badgerProcessStore) Update(ctx context.Context, id string, fn func(*models.Process) error) (*models.Process, error) {
	return s.table.update(id, fn)
}

func (s *badgerProcessStore) Upsert(ctx context.Context, process *models.Process) error {
	return s.table.put(process)
}

type badgerAgentStore struct {
	table *badgerTable[models.Agent]
}

func (s *badgerAgentStore) Create(ctx context.Context, agent *models.Agent) error {
	return s.table.insert(agent)
}

func (s *badgerAgentStore) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	return s.table.get(id)
}

func (s *badgerAgentStore) List(ctx context.Context, filter models.AgentFilter) ([]*models.Agent, error) {
	return s.table.list(filter.Matches)
}

func (s *badgerAgentStore) Update(ctx context.Context, id string, fn func(*models.Agent) error) (*models.Agent, error) {
	return s.table.update(id, fn)
}

// Логи лежат под "log:<process_id>:<unix nano>:<id>", обратный проход дает новые первыми
type badgerLogStore struct {
	db *badger.DB
}

func logPrefix(processID string) []byte {
	return []byte("log:" + processID + ":")
}

func (s *badgerLogStore) Append(ctx context.Context, entry *models.ProcessLog) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("log:%s:%020d:%s", entry.ProcessID, entry.Timestamp.UnixNano(), entry.ID)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

func (s *badgerLogStore) List(ctx context.Context, processID string, level models.LogLevel, limit int) ([]*models.ProcessLog, error) {
	var entries []*models.ProcessLog
	prefix := logPrefix(processID)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		// при обратном обходе стартуем с ключа, который больше любого ключа с префиксом
		seek := append(slices.Clone(prefix), 0xFF)
		for it.Seek(seek); it.Valid(); it.Next() {
			var entry models.ProcessLog
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &entry)
			}); err != nil {
				return err
			}
			if level != "" && entry.Level != level {
				continue
			}
			entries = append(entries, &entry)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}
