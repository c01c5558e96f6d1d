package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"Orchestrator/internal/backend/models"

	"github.com/gin-gonic/gin"
)

// WorkerAuthMiddleware проверяет Bearer токен воркера; без настроенного токена пропускает всех
func (h *Handlers) WorkerAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.workerToken == "" {
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse("missing_token", "Authorization header is required"))
			c.Abort()
			return
		}

		token = strings.TrimPrefix(token, "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.workerToken)) != 1 {
			h.logger.Warn("worker auth failed", "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, ErrorResponse("invalid_token", "Invalid worker token"))
			c.Abort()
			return
		}

		c.Next()
	}
}

// NextExecution отдает воркеру следующее выполнение его машины
func (h *Handlers) NextExecution(c *gin.Context) {
	machineID := c.Query("machine_id")
	if machineID == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "machine_id is required"))
		return
	}

	execution, err := h.queueService.NextExecution(c.Request.Context(), machineID)
	if err != nil {
		h.respondError(c, err, "get_execution_failed", "Failed to get next execution")
		return
	}

	if execution == nil {
		c.Status(http.StatusNoContent)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("execution_assigned", gin.H{
		"execution": execution,
	}))
}

// SubmitResult принимает результат выполнения от воркера
func (h *Handlers) SubmitResult(c *gin.Context) {
	var result models.ExecutionResult
	if err := c.ShouldBindJSON(&result); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid result format"))
		return
	}

	process, err := h.processService.SubmitResult(c.Request.Context(), c.Param("id"), &result)
	if err != nil {
		h.respondError(c, err, "submit_failed", "Failed to save result")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("result_received", gin.H{
		"process": process,
	}))
}

func (h *Handlers) QueueStats(c *gin.Context) {
	stats, err := h.queueService.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "stats_failed", "Failed to get queue stats")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("queue_stats", stats))
}
