package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/handlers"
)

func registerMonitoringRoutes(api *gin.RouterGroup, handler *handlers.MonitoringHandler, guard gin.HandlerFunc) {
	if api == nil || handler == nil {
		return
	}

	group := api.Group("/monitoring")
	group.GET("/summary", guard, handler.Summary)
}
