package handlers

import (
	"net/http"

	"Orchestrator/internal/backend/models"

	"github.com/gin-gonic/gin"
)

// возвращает список агентов, ?status=&type=&machine_id=&search=
func (h *Handlers) ListAgents(c *gin.Context) {
	filter := models.AgentFilter{
		Status:    models.AgentStatus(c.Query("status")),
		Type:      c.Query("type"),
		MachineID: c.Query("machine_id"),
		Search:    c.Query("search"),
	}

	agents, err := h.agentService.ListAgents(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err, "list_failed", "Failed to list agents")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("agents_list", gin.H{
		"agents": agents,
		"count":  len(agents),
	}))
}

// возвращает информацию об агенте
func (h *Handlers) GetAgent(c *gin.Context) {
	agent, err := h.agentService.GetAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "get_failed", "Failed to get agent")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("agent_found", gin.H{
		"agent": agent,
	}))
}

func (h *Handlers) CreateAgent(c *gin.Context) {
	var form models.NewAgentForm
	if err := c.ShouldBindJSON(&form); err != nil {
		h.logger.Warn("invalid agent form", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
		return
	}

	agent, err := h.agentService.AddAgent(c.Request.Context(), &form)
	if err != nil {
		h.respondError(c, err, "create_failed", "Failed to add agent")
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse("agent_created", gin.H{
		"agent": agent,
	}))
}

func (h *Handlers) AgentTypeCounts(c *gin.Context) {
	counts, err := h.agentService.TypeCounts(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "stats_failed", "Failed to count agent types")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("agent_types", gin.H{
		"types":       counts,
		"known_types": models.AgentTypes,
	}))
}

func (h *Handlers) UpdateAgentConfiguration(c *gin.Context) {
	var req struct {
		Configuration map[string]any `json:"configuration"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Invalid request body"))
		return
	}

	agent, err := h.agentService.UpdateConfiguration(c.Request.Context(), c.Param("id"), req.Configuration)
	if err != nil {
		h.respondError(c, err, "update_failed", "Failed to update agent")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("agent_updated", gin.H{
		"agent": agent,
	}))
}

func (h *Handlers) UpdateAgentStatus(c *gin.Context) {
	var req struct {
		Status models.AgentStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse("invalid_request", "Status is required"))
		return
	}

	agent, err := h.agentService.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err, "update_failed", "Failed to update agent")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("agent_updated", gin.H{
		"agent": agent,
	}))
}

func (h *Handlers) AgentMachines(c *gin.Context) {
	machines, err := h.agentService.AgentMachines(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "list_failed", "Failed to list agent machines")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("machines_list", gin.H{
		"machines": machines,
		"count":    len(machines),
	}))
}

func (h *Handlers) AgentProcesses(c *gin.Context) {
	processes, err := h.agentService.AgentProcesses(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "list_failed", "Failed to list agent processes")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("processes_list", gin.H{
		"processes": processes,
		"count":     len(processes),
	}))
}
