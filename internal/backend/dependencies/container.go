package dependencies

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"Orchestrator/internal/backend/dataverse"
	"Orchestrator/internal/backend/events"
	"Orchestrator/internal/backend/services"
	"Orchestrator/internal/backend/storage"
	"Orchestrator/internal/config"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Container контейнер зависимостей
type Container struct {
	// Config
	Config *config.Config

	// Logger
	Logger *slog.Logger

	// Storage
	Stores *storage.Stores
	Queue  storage.Queue
	Broker *events.Broker

	// Services
	MachineService   *services.MachineService
	ProcessService   *services.ProcessService
	QueueService     *services.QueueService
	AgentService     *services.AgentService
	DashboardService *services.DashboardService
	DataverseService *services.DataverseService

	// Connections, заполнены только для выбранных драйверов
	DB     *pgxpool.Pool
	Badger *badger.DB
	Redis  *redis.Client
}

// NewContainer создает и инициализирует контейнер зависимостей
func NewContainer(ctx context.Context, cfg *config.Config, log *slog.Logger) (*Container, error) {
	if log == nil {
		log = slog.Default()
	}

	container := &Container{
		Config: cfg,
		Logger: log,
	}

	steps := []func(context.Context) error{
		container.initStorage,
		container.initSeed,
		container.initRedis,
		container.initQueue,
		container.initEvents,
		container.initServices,
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			container.Close()
			return nil, err
		}
	}

	log.Info("Dependency container initialized successfully",
		"storage", cfg.Storage.Driver,
		"queue", cfg.Queue.Driver,
		"events", cfg.Events.Driver,
		"dataverse", cfg.Dataverse.Enabled,
	)
	return container, nil
}

func (c *Container) initStorage(ctx context.Context) error {
	switch c.Config.Storage.Driver {
	case config.StoragePostgres:
		db, err := storage.NewPostgres(ctx, &c.Config.Database, c.Logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		c.DB = db

		if err := storage.Migrate(ctx, db); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
		c.Stores = storage.NewPostgresStores(db)

	case config.StorageBadger:
		db, err := storage.OpenBadger(c.Config.Storage.BadgerPath, c.Logger)
		if err != nil {
			return err
		}
		c.Badger = db
		c.Stores = storage.NewBadgerStores(db)

	default:
		c.Stores = storage.NewMemoryStores()
	}
	return nil
}

func (c *Container) initSeed(ctx context.Context) error {
	if !c.Config.Storage.Seed {
		return nil
	}

	data, err := storage.LoadSeed(c.Config.Storage.SeedFile)
	if err != nil {
		return err
	}

	if err := storage.Seed(ctx, c.Stores, data, time.Now(), c.Logger); err != nil {
		return fmt.Errorf("failed to seed storage: %w", err)
	}
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	if !c.Config.NeedsRedis() {
		return nil
	}

	client, err := storage.NewRedisClient(&c.Config.Redis, c.Logger)
	if err != nil {
		return err
	}

	c.Redis = client
	return nil
}

func (c *Container) initQueue(ctx context.Context) error {
	if c.Config.Queue.Driver == config.QueueRedis {
		c.Queue = storage.NewRedisQueue(c.Redis)
		return nil
	}

	c.Queue = storage.NewMemoryQueue()
	return nil
}

func (c *Container) initEvents(ctx context.Context) error {
	var sink events.Sink

	switch c.Config.Events.Driver {
	case config.EventsRedis:
		sink = events.NewRedisSink(c.Redis)
	case config.EventsNATS:
		natsSink, err := events.NewNATSSink(c.Config.Events.NATSURL, c.Config.App.Name, c.Logger)
		if err != nil {
			return err
		}
		sink = natsSink
	}

	c.Broker = events.NewBroker(sink, c.Config.Events.Channel, c.Logger.With("component", "events"))
	return nil
}

func (c *Container) initServices(ctx context.Context) error {
	logger := c.Logger

	c.QueueService = services.NewQueueService(
		c.Queue,
		c.Stores.Processes,
		c.Stores.Machines,
		c.Stores.Logs,
		c.Broker,
		services.QueueServiceConfig{
			PollTimeout: c.Config.Queue.PollTimeout,
		},
		logger,
	)

	c.MachineService = services.NewMachineService(
		c.Stores.Machines,
		c.Stores.Processes,
		c.Broker,
		services.MachineServiceConfig{
			OfflineAfter:  c.Config.Machines.OfflineAfter,
			SweepInterval: c.Config.Machines.SweepInterval,
		},
		logger,
	)

	c.ProcessService = services.NewProcessService(
		c.Stores.Processes,
		c.Stores.Machines,
		c.Stores.Logs,
		c.QueueService,
		c.Broker,
		logger,
	)

	c.AgentService = services.NewAgentService(
		c.Stores.Agents,
		c.Stores.Machines,
		c.Stores.Processes,
		c.Broker,
		logger,
	)

	c.DashboardService = services.NewDashboardService(
		c.Stores.Machines,
		c.Stores.Processes,
		c.Stores.Agents,
		c.QueueService,
		logger,
	)

	// интерфейс должен остаться nil, если интеграция выключена
	var client services.DataverseClient
	if c.Config.Dataverse.Enabled {
		client = dataverse.NewClient(ctx, c.Config.Dataverse, logger.With("component", "dataverse"))
	}
	c.DataverseService = services.NewDataverseService(
		client,
		c.Stores.Machines,
		c.Stores.Processes,
		c.Broker,
		logger,
	)

	return nil
}

// Ready проверяет соединения выбранных драйверов
func (c *Container) Ready(ctx context.Context) map[string]error {
	checks := map[string]error{}

	if c.DB != nil {
		checks["database"] = c.DB.Ping(ctx)
	}
	if c.Badger != nil {
		checks["badger"] = nil
		if c.Badger.IsClosed() {
			checks["badger"] = errors.New("badger is closed")
		}
	}
	if c.Redis != nil {
		checks["redis"] = c.Redis.Ping(ctx).Err()
	}
	if c.Stores == nil {
		checks["storage"] = errors.New("storage not initialized")
	}
	return checks
}

// Close закрывает все соединения
func (c *Container) Close() error {
	var errs []error

	if c.Broker != nil {
		if err := c.Broker.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Queue != nil {
		if err := c.Queue.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Badger != nil {
		if err := c.Badger.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if c.DB != nil {
		c.DB.Close()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors closing dependencies: %w", errors.Join(errs...))
	}

	return nil
}
