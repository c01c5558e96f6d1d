package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"Orchestrator/internal/backend/services"

	"github.com/gin-gonic/gin"
)

// создает успешный JSON ответ
func SuccessResponse(message string, data interface{}) gin.H {
	response := gin.H{
		"success":   true,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}

	if data != nil {
		response["data"] = data
	}

	return response
}

// создает JSON ответ с ошибкой
func ErrorResponse(code string, message string) gin.H {
	return gin.H{
		"success":   false,
		"error":     code,
		"message":   message,
		"timestamp": time.Now().UTC(),
	}
}

// ErrorResponseWithData - ошибка с телом результата (неуспешное назначение, выполнение)
func ErrorResponseWithData(code string, message string, data interface{}) gin.H {
	response := ErrorResponse(code, message)
	response["data"] = data
	return response
}

// respondError переводит ошибку сервиса в HTTP статус
func (h *Handlers) respondError(c *gin.Context, err error, code, message string) {
	var ve *services.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, ErrorResponse("validation_failed", ve.Message))
	case services.IsNotFound(err):
		c.JSON(http.StatusNotFound, ErrorResponse("not_found", notFoundMessage(err)))
	case errors.Is(err, services.ErrDataverseDisabled):
		c.JSON(http.StatusServiceUnavailable, ErrorResponse("dataverse_disabled", err.Error()))
	default:
		h.logger.Error(message, "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, ErrorResponse(code, message))
	}
}

func notFoundMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrMachineNotFound):
		return "Machine not found"
	case errors.Is(err, services.ErrProcessNotFound):
		return "Process not found"
	case errors.Is(err, services.ErrAgentNotFound):
		return "Agent not found"
	case errors.Is(err, services.ErrRemoteRecordNotFound):
		return "Dataverse record not found"
	}
	return "Not found"
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func queryBool(c *gin.Context, key string) bool {
	value, _ := strconv.ParseBool(c.Query(key))
	return value
}
