package router

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/adapter/api/handler"
	"rentalportal/internal/adapter/api/middleware"
)

func SetupUnreadRouter(portalGroup *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	unreadHandler := handler.GetUnreadHandler()

	unreadGroup := portalGroup.Group("/unread")
	unreadGroup.Use(authMiddleware.Authenticate)

	unreadGroup.GET("", unreadHandler.GetUnread)
	unreadGroup.POST("/refresh", unreadHandler.Refresh)
	unreadGroup.POST("/:counterpartId/increase", unreadHandler.Increase)
	unreadGroup.POST("/:counterpartId/decrease", unreadHandler.Decrease)
	unreadGroup.POST("/:counterpartId/clear", unreadHandler.Clear)
}
