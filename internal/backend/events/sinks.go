package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
)

type redisSink struct {
	client *redis.Client
}

// NewRedisSink публикует события через PUBLISH; клиент закрывает владелец
func NewRedisSink(client *redis.Client) Sink {
	return &redisSink{client: client}
}

func (s *redisSink) Publish(ctx context.Context, subject string, payload []byte) error {
	return s.client.Publish(ctx, subject, payload).Err()
}

func (s *redisSink) Close() error {
	return nil
}

type natsSink struct {
	nc *nats.Conn
}

func NewNATSSink(url, name string, log *slog.Logger) (Sink, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	log.Info("Connected to NATS", "url", nc.ConnectedUrl())
	return &natsSink{nc: nc}, nil
}

func (s *natsSink) Publish(ctx context.Context, subject string, payload []byte) error {
	if s.nc == nil || s.nc.IsClosed() {
		return fmt.Errorf("nats not connected")
	}
	return s.nc.Publish(subject, payload)
}

func (s *natsSink) Close() error {
	if s.nc == nil {
		return nil
	}
	if err := s.nc.Drain(); err != nil {
		s.nc.Close()
		return err
	}
	return nil
}
