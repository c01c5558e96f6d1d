package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"Orchestrator/internal/backend/dependencies"
	"Orchestrator/internal/backend/server"
	"Orchestrator/internal/config"
	"Orchestrator/internal/discovery"
	"Orchestrator/pkg/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config %s", err)
	}

	// Настройка логирования
	log := logger.Setup(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	log.Info("Starting orchestrator backend",
		slog.String("name", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.Int("port", cfg.Server.Port),
	)

	initCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создаем контейнер зависимостей
	container, err := dependencies.NewContainer(initCtx, cfg, log)
	if err != nil {
		log.Error("Failed to create dependency container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	// Создаем сервер
	srv := server.New(&server.Config{
		Port: cfg.Server.Port,
		Mode: cfg.Server.Mode,
	}, container)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deregister := registerService(cfg, log)
	defer deregister()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(srv.Start)

	g.Go(func() error {
		return container.MachineService.RunMaintenance(gctx)
	})

	// Graceful shutdown по сигналу или падению одной из горутин
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("Server stopped gracefully")
}

// registerService регистрирует backend в Consul, если указан consul.addr
func registerService(cfg *config.Config, log *slog.Logger) func() {
	if cfg.Consul.Addr == "" {
		return func() {}
	}

	registry, err := discovery.NewRegistry(cfg.Consul.Addr)
	if err != nil {
		log.Warn("Consul unavailable, continuing without registration", "error", err)
		return func() {}
	}

	id, err := registry.Register(cfg.Consul.ServiceName, cfg.Consul.Address, cfg.Server.Port)
	if err != nil {
		log.Warn("Failed to register in Consul", "error", err)
		return func() {}
	}

	log.Info("Registered in Consul", "service_id", id, "consul", cfg.Consul.Addr)
	return func() {
		if err := registry.Deregister(id); err != nil {
			log.Warn("Failed to deregister from Consul", "error", err)
		}
	}
}
