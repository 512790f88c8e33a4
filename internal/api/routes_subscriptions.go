package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/handlers"
)

func registerSubscriptionRoutes(api *gin.RouterGroup, handler *handlers.SubscriptionHandler) {
	group := api.Group("/notifications")
	{
		group.POST("/subscription", handler.Subscribe)
		group.DELETE("/subscription", handler.Unsubscribe)
		group.GET("/status", handler.Status)
		group.GET("/subscriptions", handler.List)
	}
}
