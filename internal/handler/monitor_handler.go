package handler

import (
	"github.com/harshhpatil/recipegramapp-sub000/internal/model"

	"github.com/gin-gonic/gin"
)

// StatsSource reports gateway statistics
type StatsSource interface {
	GetStats() model.MonitorResponse
}

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetHubStats(c *gin.Context)
}

type monitorHandler struct {
	monitorService StatsSource
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService StatsSource) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
	}
}

// GetHubStats returns current gateway statistics
// @Summary Get realtime gateway statistics
// @Description Returns connection counts by state, connected clients and broker mode
// @Tags Monitor
// @Produce json
// @Success 200 {object} model.MonitorResponse
// @Router /cf/api/monitor/stats [get]
func (h *monitorHandler) GetHubStats(c *gin.Context) {
	ok(c, "Hub statistics retrieved successfully", h.monitorService.GetStats())
}
