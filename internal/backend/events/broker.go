package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

const (
	MachineCreated   = "machine.created"
	MachineUpdated   = "machine.updated"
	MachineOffline   = "machine.offline"
	ProcessCreated   = "process.created"
	ProcessAssigned  = "process.assigned"
	ProcessFinished  = "process.finished"
	ExecutionQueued  = "execution.queued"
	AgentCreated     = "agent.created"
	AgentUpdated     = "agent.updated"
	DataverseSynced  = "dataverse.synced"
	subscriberBuffer = 64
)

type Event struct {
	Type      string    `json:"type"`
	ID        string    `json:"id,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink - внешний канал доставки событий (Redis pub/sub, NATS)
type Sink interface {
	Publish(ctx context.Context, subject string, payload []byte) error
	Close() error
}

// Broker раздает события локальным подписчикам (websocket) и во внешний sink
type Broker struct {
	mu     sync.RWMutex
	subs   map[int]chan Event
	nextID int
	sink   Sink
	prefix string
	logger *slog.Logger
}

func NewBroker(sink Sink, prefix string, logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		subs:   make(map[int]chan Event),
		sink:   sink,
		prefix: prefix,
		logger: logger,
	}
}

// Publish не блокируется: медленный подписчик теряет событие
func (b *Broker) Publish(ctx context.Context, eventType, id string, data any) {
	if b == nil {
		return
	}

	event := Event{
		Type:      eventType,
		ID:        id,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}

	b.mu.RLock()
	for subID, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping event for slow subscriber", "subscriber", subID, "type", eventType)
		}
	}
	b.mu.RUnlock()

	if b.sink == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal event", "error", err, "type", eventType)
		return
	}

	subject := eventType
	if b.prefix != "" {
		subject = b.prefix + "." + eventType
	}
	if err := b.sink.Publish(ctx, subject, payload); err != nil {
		b.logger.Error("failed to publish event", "error", err, "subject", subject)
	}
}

// Subscribe возвращает канал событий и функцию отписки
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			// после Close канал уже закрыт
			if _, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(ch)
			}
		})
	}
}

func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *Broker) Close() error {
	b.mu.Lock()
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
	b.mu.Unlock()

	if b.sink != nil {
		return b.sink.Close()
	}
	return nil
}
