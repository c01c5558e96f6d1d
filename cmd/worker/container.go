package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"Orchestrator/internal/discovery"
	client "Orchestrator/internal/worker/clients"
	handler "Orchestrator/internal/worker/handlers"
	"Orchestrator/internal/worker/metrics"
	runner "Orchestrator/internal/worker/runners"
	"Orchestrator/pkg/logger"
)

type Container struct {
	Logger           *slog.Logger
	APIClient        *client.APIClient
	RunnerFactory    *runner.Factory
	ExecutionHandler *handler.ExecutionHandler
	WorkerHandler    *handler.WorkerHandler
}

func GetContainer() (*Container, error) {
	container := &Container{}

	container.initLogger()

	steps := []func() error{
		container.initAPIClient,
		container.initRunners,
		container.initHandlers,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return nil, err
		}
	}

	return container, nil
}

func (c *Container) initLogger() {
	c.Logger = logger.Setup(logger.Config{
		Level:  getEnv("LOG_LEVEL", "info"),
		Format: getEnv("LOG_FORMAT", "json"),
	}).With("service", "worker")
}

func (c *Container) initAPIClient() error {
	machineID := getEnv("MACHINE_ID", "")
	if machineID == "" {
		return errors.New("MACHINE_ID is required")
	}

	baseURL, err := c.resolveBackendURL()
	if err != nil {
		return err
	}

	c.Logger.Info("Using backend", "url", baseURL, "machine_id", machineID)
	c.APIClient = client.NewAPIClient(baseURL, getEnv("WORKER_TOKEN", ""), machineID)
	return nil
}

// resolveBackendURL: BACKEND_URL, иначе поиск backend в Consul
func (c *Container) resolveBackendURL() (string, error) {
	if url := getEnv("BACKEND_URL", ""); url != "" {
		return url, nil
	}

	consulAddr := getEnv("CONSUL_HTTP_ADDR", "")
	if consulAddr == "" {
		return "http://localhost:8080", nil
	}

	registry, err := discovery.NewRegistry(consulAddr)
	if err != nil {
		return "", err
	}

	service := getEnv("BACKEND_SERVICE", "orchestrator-backend")
	url, err := registry.Discover(service)
	if err != nil {
		return "", fmt.Errorf("discover %s via consul %s: %w", service, consulAddr, err)
	}
	return url, nil
}

func (c *Container) initRunners() error {
	// command выключен, пока его явно не разрешили на машине
	var commandRunner *runner.CommandRunner
	if getBoolEnv("WORKER_ALLOW_COMMANDS", false) {
		commandRunner = runner.NewCommandRunner(getEnv("WORKER_SHELL", "/bin/sh"), getDurationEnv("COMMAND_TIMEOUT", 5*time.Minute))
	}

	c.RunnerFactory = runner.NewFactory(
		runner.NewNoopRunner(),
		commandRunner,
		runner.NewHTTPRunner(),
		runner.NewTCPRunner(),
		runner.NewDNSRunner(getEnv("DNS_SERVER", "")),
	)

	c.Logger.Info("Runners initialized", "command_enabled", commandRunner != nil)
	return nil
}

func (c *Container) initHandlers() error {
	c.ExecutionHandler = handler.NewExecutionHandler(c.RunnerFactory, c.Logger)
	c.WorkerHandler = handler.NewWorkerHandler(
		c.Logger,
		c.APIClient,
		c.ExecutionHandler,
		metrics.NewCollector(time.Second),
		handler.Config{
			HeartbeatInterval: getDurationEnv("HEARTBEAT_INTERVAL", 15*time.Second),
			IdleDelay:         getDurationEnv("POLL_INTERVAL", handler.IDLE_DELAY),
			ErrorDelay:        getDurationEnv("RETRY_DELAY", handler.ERROR_DELAY),
		},
	)
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil && value > 0 {
		return value
	}
	return defaultValue
}
