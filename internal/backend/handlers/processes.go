package handlers

import (
	"net/http"

	"Orchestrator/internal/backend/models"

	"github.com/gin-gonic/gin"
)

// возвращает список процессов, ?status=&machine_id=&search=&assignable=true
func (h *Handlers) ListProcesses(c *gin.Context) {
	filter := models.ProcessFilter{
		Status:     models.ProcessStatus(c.Query("status")),
		MachineID:  c.Query("machine_id"),
		Search:     c.Query("search"),
		Assignable: queryBool(c, "assignable"),
	}

	processes, err := h.processService.ListProcesses(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list_failed", "Failed to list processes")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("processes_list", gin.H{
		"processes": processes,
		"count":     len(processes),
	}))
}

func (h *Handlers) GetProcess(c *gin.Context) {
	process, err := h.processService.GetProcess(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_failed", "Failed to get process")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("process_found", gin.H{
		"process": process,
	}))
}

func (h *Handlers) CreateProcess(c *gin.Context) {
	var form models.NewProcessForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
		return
	}

	process, err := h.processService.AddProcess(c.Request.Context(), &form)
	if err != nil {
		h.respondError(c, err, "create_failed", "Failed to add process")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse("process_created", gin.H{
		"process": process,
	}))
}

// назначает процесс на машину и запускает его
func (h *Handlers) AssignProcess(c *gin.Context) {
	var form models.ProcessAssignmentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Parameters must be a JSON object"))
		return
	}

	result, err := h.processService.AssignAndRun(c.Request.Context(), &form)
	if err != nil {
		h.respondError(c, err, "assignment_failed", "Failed to assign process")
		return
	}

	if !result.Success {
		c.JSON(http.StatusNotFound, ErrorResponseWithData("not_found", result.Message, result))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse(result.Message, result))
}

func (h *Handlers) ProcessLogs(c *gin.Context) {
	logs, err := h.processService.Logs(c.Request.Context(), c.Param("id"), c.Query("level"), queryInt(c, "limit", 0))
	if err != nil {
		h.respondError(c, err, "logs_failed", "Failed to get process logs")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("process_logs", gin.H{
		"logs":  logs,
		"count": len(logs),
	}))
}

// ставит процесс в очередь машины
func (h *Handlers) ExecuteProcess(c *gin.Context) {
	var req models.ExecutionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
			return
		}
	}
	req.ProcessID = c.Param("id")

	resp, err := h.queueService.ExecuteProcess(c.Request.Context(), &req)
	if err != nil {
		h.respondError(c, err, "execute_failed", "Failed to queue execution")
		return
	}

	if resp.Status == models.ExecutionStatusFailed {
		c.JSON(http.StatusNotFound, ErrorResponseWithData("not_found", resp.Message, resp))
		return
	}

	c.JSON(http.StatusAccepted, SuccessResponse("execution_queued", resp))
}
