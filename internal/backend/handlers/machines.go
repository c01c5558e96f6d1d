package handlers

import (
	"net/http"

	"Orchestrator/internal/backend/models"

	"github.com/gin-gonic/gin"
)

// возвращает список машин, ?status=&search=&available=true
func (h *Handlers) ListMachines(c *gin.Context) {
	filter := models.MachineFilter{
		Status:    models.MachineStatus(c.Query("status")),
		Search:    c.Query("search"),
		Available: queryBool(c, "available"),
	}

	machines, err := h.machineService.ListMachines(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list_failed", "Failed to list machines")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("machines_list", gin.H{
		"machines": machines,
		"count":    len(machines),
	}))
}

func (h *Handlers) GetMachine(c *gin.Context) {
	machine, err := h.machineService.GetMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_failed", "Failed to get machine")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("machine_found", gin.H{
		"machine": machine,
	}))
}

func (h *Handlers) CreateMachine(c *gin.Context) {
	var form models.NewMachineForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.logger.Warn("invalid machine form", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
		return
	}

	machine, err := h.machineService.AddMachine(c.Request.Context(), &form)
	if err != nil {
		h.respondError(c, err, "create_failed", "Failed to add machine")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse("machine_created", gin.H{
		"machine": machine,
	}))
}

func (h *Handlers) MachineProcesses(c *gin.Context) {
	processes, err := h.machineService.ProcessesForMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "list_failed", "Failed to list machine processes")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("processes_list", gin.H{
		"processes": processes,
		"count":     len(processes),
	}))
}

// принимает heartbeat воркера
func (h *Handlers) Heartbeat(c *gin.Context) {
	var req models.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
		return
	}

	machine, err := h.machineService.Heartbeat(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		h.respondError(c, err, "heartbeat_failed", "Failed to update heartbeat")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("heartbeat_received", gin.H{
		"machine": machine,
	}))
}
