package handlers

import (
	"net/http"

	"Orchestrator/internal/backend/services"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) DataverseStatus(c *gin.Context) {
	status := h.dataverseService.TestConnection(c.Request.Context())
	c.JSON(http.StatusOK, SuccessResponse("dataverse_status", status))
}

// DataverseSync тянет машины и процессы из Dataverse, ?top=50
func (h *Handlers) DataverseSync(c *gin.Context) {
	top := queryInt(c, "top", 0)
	ctx := c.Request.Context()

	machines, err := h.dataverseService.PullMachines(ctx, top)
	if err != nil {
		h.respondError(c, err, "sync_failed", "Failed to sync machines")
		return
	}

	processes, err := h.dataverseService.PullProcesses(ctx, top)
	if err != nil {
		h.respondError(c, err, "sync_failed", "Failed to sync processes")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("dataverse_synced", gin.H{
		"results": []*services.SyncResult{machines, processes},
	}))
}

func (h *Handlers) DataversePushMachine(c *gin.Context) {
	remoteID, created, err := h.dataverseService.PushMachine(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err, "push_failed", "Failed to push machine")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("machine_pushed", gin.H{
		"remote_id": remoteID,
		"created":   created,
	}))
}

func (h *Handlers) DataverseRemoveMachine(c *gin.Context) {
	if err := h.dataverseService.RemoveMachine(c.Request.Context(), c.Param("id")); err != nil {
		h.respondError(c, err, "remove_failed", "Failed to remove machine from dataverse")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("machine_removed", nil))
}
