package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/handlers"
)

func registerPreferenceRoutes(api *gin.RouterGroup, handler *handlers.PreferenceHandler) {
	group := api.Group("/notifications")
	{
		group.GET("/preferences", handler.GetMine)
		group.PATCH("/preferences", handler.UpdateMine)

		group.GET("/subscriptions/:id/preferences", handler.GetSubscription)
		group.PATCH("/subscriptions/:id/preferences", handler.UpdateSubscription)
		group.GET("/subscriptions/:id/preferences/effective", handler.Effective)
	}
}
