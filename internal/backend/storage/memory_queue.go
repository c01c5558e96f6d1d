package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

// memoryQueue - FIFO очереди в памяти для одного процесса бэкенда
type memoryQueue struct {
	mu     sync.Mutex
	queues map[string][][]byte
	notify chan struct{}
}

func NewMemoryQueue() Queue {
	return &memoryQueue{
		queues: make(map[string][][]byte),
		notify: make(chan struct{}),
	}
}

func (q *memoryQueue) Push(ctx context.Context, queueName string, payload []byte) error {
	q.mu.Lock()
	q.queues[queueName] = append(q.queues[queueName], slices.Clone(payload))
	close(q.notify)
	q.notify = make(chan struct{})
	q.mu.Unlock()
	return nil
}

func (q *memoryQueue) Pop(ctx context.Context, queueNames []string, timeout time.Duration) ([]byte, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		q.mu.Lock()
		for _, name := range queueNames {
			items := q.queues[name]
			if len(items) == 0 {
				continue
			}
			head := items[0]
			q.queues[name] = items[1:]
			q.mu.Unlock()
			return head, nil
		}
		wait := q.notify
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, nil
		case <-wait:
		}
	}
}

func (q *memoryQueue) Length(ctx context.Context, queueName string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.queues[queueName])), nil
}

func (q *memoryQueue) Close() error {
	return nil
}
