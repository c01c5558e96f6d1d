package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"Orchestrator/internal/backend/dependencies"
	"Orchestrator/internal/backend/handlers"
	"Orchestrator/internal/backend/metrics"
	"Orchestrator/pkg/uuidutil"

	"github.com/gin-gonic/gin"
)

type Server struct {
	router     *gin.Engine
	config     *Config
	container  *dependencies.Container
	handlers   *handlers.Handlers
	httpServer *http.Server
	logger     *slog.Logger
}

type Config struct {
	Port int
	Mode string
}

// New создает сервер с dependency injection
func New(config *Config, container *dependencies.Container) *Server {
	switch config.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	server := &Server{
		router:    gin.New(),
		config:    config,
		container: container,
		handlers:  handlers.NewHandlers(container),
		logger:    container.Logger.With("component", "http"),
	}

	server.setupMiddlewares()
	server.setupRoutes()

	// http.Server создается сразу: Shutdown до Start не должен терять сервер
	server.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", config.Port),
		Handler:     server.router,
		ReadTimeout: 30 * time.Second,
		// WriteTimeout не ставим: /ws/events держит соединение
		IdleTimeout: 60 * time.Second,
	}

	return server
}

func (s *Server) setupMiddlewares() {
	// Recovery middleware
	s.router.Use(gin.Recovery())

	// Logger middleware
	s.router.Use(s.loggerMiddleware())

	// Prometheus
	s.router.Use(metrics.Middleware())

	// CORS middleware
	s.router.Use(s.corsMiddleware())

	// Request ID middleware
	s.router.Use(s.requestIDMiddleware())
}

func (s *Server) setupRoutes() {
	h := s.handlers

	// Health checks
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/ready", s.readyCheck)
	s.router.GET("/metrics", metrics.Handler())

	// API v1 group
	api := s.router.Group("/api/v1")
	{
		api.GET("/dashboard", h.Dashboard)
		api.GET("/dashboard/stats", h.DashboardStats)

		machines := api.Group("/machines")
		{
			machines.GET("", h.ListMachines)
			machines.POST("", h.CreateMachine)
			machines.GET("/:id", h.GetMachine)
			machines.GET("/:id/processes", h.MachineProcesses)
			machines.POST("/:id/heartbeat", h.WorkerAuthMiddleware(), h.Heartbeat)
		}

		processes := api.Group("/processes")
		{
			processes.GET("", h.ListProcesses)
			processes.POST("", h.CreateProcess)
			processes.GET("/:id", h.GetProcess)
			processes.GET("/:id/logs", h.ProcessLogs)
			processes.POST("/:id/execute", h.ExecuteProcess)
			processes.POST("/:id/result", h.WorkerAuthMiddleware(), h.SubmitResult)
		}

		api.POST("/assignments", h.AssignProcess)

		// Executions routes (для воркеров)
		executions := api.Group("/executions")
		executions.Use(h.WorkerAuthMiddleware())
		{
			executions.GET("/next", h.NextExecution)
		}
		api.GET("/queue/stats", h.QueueStats)

		agents := api.Group("/agents")
		{
			agents.GET("", h.ListAgents)
			agents.POST("", h.CreateAgent)
			agents.GET("/:id", h.GetAgent)
			agents.PUT("/:id/configuration", h.UpdateAgentConfiguration)
			agents.PUT("/:id/status", h.UpdateAgentStatus)
			agents.GET("/:id/machines", h.AgentMachines)
			agents.GET("/:id/processes", h.AgentProcesses)
		}
		api.GET("/agent-types", h.AgentTypeCounts)

		dataverse := api.Group("/dataverse")
		{
			dataverse.GET("/status", h.DataverseStatus)
			dataverse.POST("/sync", h.DataverseSync)
			dataverse.POST("/machines/:id", h.DataversePushMachine)
			dataverse.DELETE("/machines/:id", h.DataverseRemoveMachine)
		}
	}

	// WebSocket routes
	s.router.GET("/ws/events", h.EventsWebSocket)

	// 404 handler
	s.router.NoRoute(s.notFoundHandler)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   s.container.Config.App.Name,
		"version":   s.container.Config.App.Version,
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) readyCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	response := gin.H{
		"status":    "ready",
		"storage":   s.container.Config.Storage.Driver,
		"timestamp": time.Now().UTC(),
	}

	for name, err := range s.container.Ready(ctx) {
		if err != nil {
			status = http.StatusServiceUnavailable
			response["status"] = "error"
			response[name] = err.Error()
			continue
		}
		response[name] = "connected"
	}

	c.JSON(status, response)
}

func (s *Server) notFoundHandler(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"error":   "not_found",
		"message": "Endpoint not found",
		"path":    c.Request.URL.Path,
	})
}

func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		// Продолжаем обработку
		c.Next()

		statusCode := c.Writer.Status()
		if query != "" {
			path = path + "?" + query
		}

		level := slog.LevelInfo
		if statusCode >= 400 {
			level = slog.LevelWarn
		}
		if statusCode >= 500 {
			level = slog.LevelError
		}

		s.logger.Log(c.Request.Context(), level, "HTTP request",
			"status", statusCode,
			"method", c.Request.Method,
			"path", path,
			"ip", c.ClientIP(),
			"latency", time.Since(start),
			"request_id", c.GetString("request_id"),
			"error", c.Errors.ByType(gin.ErrorTypePrivate).String(),
		)
	}
}

func (s *Server) corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuidutil.NewWithPrefix("req")
		}

		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// Start запускает HTTP сервер
func (s *Server) Start() error {
	s.logger.Info("Starting HTTP server",
		"port", s.config.Port,
		"mode", s.config.Mode,
		"address", s.httpServer.Addr,
	)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown выполняет graceful shutdown сервера
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("Server shutdown completed")
	return nil
}

// GetRouter возвращает router для тестирования
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
