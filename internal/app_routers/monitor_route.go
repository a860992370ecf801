package approuters

import (
	"github.com/harshhpatil/recipegramapp-sub000/internal/configuration"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorGroup := router.Group("/cf/api/monitor")
	{
		// GET /cf/api/monitor/stats - gateway statistics
		monitorGroup.GET("/stats", container.MonitorHandler.GetHubStats)
	}
}
