package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Queue     QueueConfig     `mapstructure:"queue"`
	Events    EventsConfig    `mapstructure:"events"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Security  SecurityConfig  `mapstructure:"security"`
	Machines  MachinesConfig  `mapstructure:"machines"`
	Consul    ConsulConfig    `mapstructure:"consul"`
	Dataverse DataverseConfig `mapstructure:"dataverse"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type StorageConfig struct {
	Driver     string `mapstructure:"driver"`
	BadgerPath string `mapstructure:"badger_path"`
	Seed       bool   `mapstructure:"seed"`
	SeedFile   string `mapstructure:"seed_file"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type QueueConfig struct {
	Driver      string        `mapstructure:"driver"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

type EventsConfig struct {
	Driver  string `mapstructure:"driver"`
	Channel string `mapstructure:"channel"`
	NATSURL string `mapstructure:"nats_url"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	WorkerToken string `mapstructure:"worker_token"`
}

type MachinesConfig struct {
	OfflineAfter  time.Duration `mapstructure:"offline_after"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

type ConsulConfig struct {
	Addr        string `mapstructure:"addr"`
	ServiceName string `mapstructure:"service_name"`
	Address     string `mapstructure:"address"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
}

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageBadger   = "badger"

	QueueMemory = "memory"
	QueueRedis  = "redis"

	EventsNone  = "none"
	EventsRedis = "redis"
	EventsNATS  = "nats"
)

func Load() (*Config, error) {
	return LoadFrom("configs")
}

// LoadFrom читает config.yaml из каталога path, переменные окружения имеют приоритет
func LoadFrom(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)

	v.SetEnvPrefix("ORCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindDataverseEnv(v)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config, %w", err)
	}

	config.Dataverse.Normalize()

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed, %w", err)
	}

	slog.Info("configuration loaded successfully",
		"storage", config.Storage.Driver,
		"queue", config.Queue.Driver,
		"events", config.Events.Driver,
	)
	return &config, nil
}

// Переменные Dataverse читаются под своими историческими именами
func bindDataverseEnv(v *viper.Viper) {
	_ = v.BindEnv("dataverse.url", "DATAVERSE_URL")
	_ = v.BindEnv("dataverse.api_version", "DATAVERSE_API_VERSION")
	_ = v.BindEnv("dataverse.auth_type", "DATAVERSE_AUTH_TYPE")
	_ = v.BindEnv("dataverse.client_id", "DATAVERSE_CLIENT_ID")
	_ = v.BindEnv("dataverse.client_secret", "DATAVERSE_CLIENT_SECRET")
	_ = v.BindEnv("dataverse.tenant_id", "DATAVERSE_TENANT_ID")
	_ = v.BindEnv("dataverse.api_key", "DATAVERSE_API_KEY")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "orchestrator")
	v.SetDefault("app.version", "1.0.0")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	// storage defaults
	v.SetDefault("storage.driver", StorageMemory)
	v.SetDefault("storage.badger_path", "data/badger")
	v.SetDefault("storage.seed", true)
	v.SetDefault("storage.seed_file", "")

	// database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "orchestrator")
	v.SetDefault("database.password", "orchestrator")
	v.SetDefault("database.dbname", "orchestrator")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)

	// redis defaults
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("queue.driver", QueueMemory)
	v.SetDefault("queue.poll_timeout", "2s")

	v.SetDefault("events.driver", EventsNone)
	v.SetDefault("events.channel", "fleet.events")
	v.SetDefault("events.nats_url", "nats://localhost:4222")

	// logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("security.worker_token", "")

	// 0 отключает перевод машин в offline
	v.SetDefault("machines.offline_after", "0s")
	v.SetDefault("machines.sweep_interval", "30s")

	v.SetDefault("consul.addr", "")
	v.SetDefault("consul.service_name", "orchestrator-backend")
	v.SetDefault("consul.address", "")

	v.SetDefault("dataverse.enabled", false)
	v.SetDefault("dataverse.api_version", "9.2")
	v.SetDefault("dataverse.auth_type", DataverseAuthOAuth)
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	if cfg.Server.Mode != "debug" && cfg.Server.Mode != "release" && cfg.Server.Mode != "test" {
		return fmt.Errorf("invalid server mode %s", cfg.Server.Mode)
	}

	switch cfg.Storage.Driver {
	case StorageMemory:
	case StoragePostgres:
		if cfg.Database.Host == "" {
			return errors.New("database host is required")
		}
		if cfg.Database.DBName == "" {
			return fmt.Errorf("database name is required")
		}
	case StorageBadger:
		if cfg.Storage.BadgerPath == "" {
			return errors.New("badger path is required")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Queue.Driver {
	case QueueMemory, QueueRedis:
	default:
		return fmt.Errorf("unknown queue driver %q", cfg.Queue.Driver)
	}

	switch cfg.Events.Driver {
	case EventsNone, EventsRedis:
	case EventsNATS:
		if cfg.Events.NATSURL == "" {
			return errors.New("nats url is required for nats events")
		}
	default:
		return fmt.Errorf("unknown events driver %q", cfg.Events.Driver)
	}

	if (cfg.Queue.Driver == QueueRedis || cfg.Events.Driver == EventsRedis) && cfg.Redis.Addr == "" {
		return fmt.Errorf("redis address is required")
	}

	if cfg.Machines.OfflineAfter < 0 {
		return fmt.Errorf("machines.offline_after must not be negative")
	}

	if cfg.Dataverse.Enabled {
		if err := cfg.Dataverse.Validate(); err != nil {
			return fmt.Errorf("dataverse: %w", err)
		}
	}

	if cfg.Security.WorkerToken == "" {
		slog.Warn("Worker token is empty - worker endpoints are open")
	}

	return nil
}

// NeedsRedis сообщает, нужен ли контейнеру клиент Redis
func (c *Config) NeedsRedis() bool {
	return c.Queue.Driver == QueueRedis || c.Events.Driver == EventsRedis
}

// возвращает DSN строку для PostgreSQL
func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// возвращает настройки для Redis клиента
func (r *RedisConfig) GetRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:            r.Addr,
		Password:        r.Password,
		DB:              r.DB,
		DisableIdentity: true,
	}
}
