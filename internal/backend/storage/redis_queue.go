package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Orchestrator/internal/config"

	"github.com/redis/go-redis/v9"
)

type redisQueue struct {
	client *redis.Client
}

// NewRedisClient подключается к Redis и проверяет соединение
func NewRedisClient(cfg *config.RedisConfig, log *slog.Logger) (*redis.Client, error) {
	client := redis.NewClient(cfg.GetRedisOptions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Error("failed to connect to Redis", "error", err, "addr", cfg.Addr)
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Connected to Redis", "addr", cfg.Addr)
	return client, nil
}

// Клиент закрывает контейнер, Close очереди ничего не делает
func NewRedisQueue(client *redis.Client) Queue {
	return &redisQueue{client: client}
}

// Добавляем элемент в очередь
func (r *redisQueue) Push(ctx context.Context, queueName string, payload []byte) error {
	slog.Debug("Pushing execution to Redis",
		"queue", queueName,
		"length", len(payload),
	)
	return r.client.LPush(ctx, queueName, payload).Err()
}

// Забираем элемент; BRPOP проверяет ключи по порядку, поэтому high идет первым
func (r *redisQueue) Pop(ctx context.Context, queueNames []string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = time.Second
	}

	result, err := r.client.BRPop(ctx, timeout, queueNames...).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}

		// Очередь пуста
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("redis BRPop failed: %w", err)
	}

	if len(result) < 2 {
		return nil, fmt.Errorf("invalid BRPop result: expected 2 elements, got %d", len(result))
	}

	return []byte(result[1]), nil
}

func (r *redisQueue) Length(ctx context.Context, queueName string) (int64, error) {
	return r.client.LLen(ctx, queueName).Result()
}

func (r *redisQueue) Close() error {
	return nil
}
