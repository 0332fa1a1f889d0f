package router

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/adapter/api/handler"
	"rentalportal/internal/adapter/api/middleware"
	"rentalportal/internal/infrastructure/ratelimit"
)

func SetupConversationRouter(portalGroup *echo.Group, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	conversationHandler := handler.GetConversationHandler()

	conversationGroup := portalGroup.Group("/conversations")
	conversationGroup.Use(authMiddleware.Authenticate)

	conversationGroup.GET("", conversationHandler.ListConversations)                    // GET /v1/:portal/conversations?page=&limit=
	conversationGroup.GET("/:counterpartId/messages", conversationHandler.GetThread)    // oldest first
	conversationGroup.POST("/:counterpartId/messages", conversationHandler.SendMessage) // rate limited per participant
	conversationGroup.PUT("/:counterpartId/read", conversationHandler.MarkRead, middleware.RateLimit(limiter, ratelimit.ActionMarkRead))
}
