package api

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/simplenotify/internal/handlers"
)

func registerPublicPushRoutes(r *gin.Engine, handler *handlers.PushHandler) {
	r.POST("/service-worker-push/", handlers.ServiceWorkerAck)
	r.GET("/api/push/vapid-public-key", handler.VAPIDPublicKey)
}

func registerPushRoutes(api *gin.RouterGroup, handler *handlers.PushHandler) {
	group := api.Group("/notifications")
	{
		group.POST("/send", handler.SendToMe)
		group.POST("/subscriptions/:id/send", handler.SendToSubscription)
	}
}
