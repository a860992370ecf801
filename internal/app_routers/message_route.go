package approuters

import (
	"github.com/harshhpatil/recipegramapp-sub000/internal/configuration"
	"github.com/harshhpatil/recipegramapp-sub000/internal/middleware"

	"github.com/gin-gonic/gin"
)

func MessageRouters(router *gin.Engine, container *configuration.Container) {
	h := container.MessageHandler

	api := router.Group("/api", middleware.Auth(container.Tokens))
	{
		api.POST("/messages", middleware.RateLimit(container.SendLimiter, container.Logger), h.SendMessage)
		api.GET("/messages", h.GetConversations)
		api.GET("/messages/unread/count", h.GetUnreadCount)
		api.GET("/messages/:partnerId", h.GetMessages)
		api.PUT("/messages/:id/read", h.MarkAsRead)
		api.DELETE("/messages/:id", h.DeleteMessage)
		api.PUT("/conversations/:partnerId/read", h.MarkConversationRead)
		api.GET("/presence/:userId", h.GetPresence)
	}
}
