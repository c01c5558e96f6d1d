package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handlers) Dashboard(c *gin.Context) {
	overview, err := h.dashboardService.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "dashboard_failed", "Failed to load dashboard")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("dashboard", overview))
}

func (h *Handlers) DashboardStats(c *gin.Context) {
	stats, err := h.dashboardService.Stats(c.Request.Context())
	if err != nil {
		h.respondError(c, err, "stats_failed", "Failed to load stats")
		return
	}

	c.JSON(http.StatusOK, SuccessResponse("dashboard_stats", stats))
}
