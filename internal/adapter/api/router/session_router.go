package router

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/adapter/api/handler"
	"rentalportal/internal/adapter/api/middleware"
)

func SetupSessionRouter(portalGroup *echo.Group, authMiddleware *middleware.AuthMiddleware) {
	sessionHandler := handler.GetSessionHandler()

	sessionGroup := portalGroup.Group("/session")
	sessionGroup.GET("", sessionHandler.GetSession)
	sessionGroup.POST("/navigate", sessionHandler.Navigate)
	sessionGroup.POST("/init", sessionHandler.Init)
	sessionGroup.POST("/login", sessionHandler.Login)
	sessionGroup.POST("/register", sessionHandler.Register)
	sessionGroup.POST("/logout", sessionHandler.Logout)
	sessionGroup.PUT("/profile", sessionHandler.UpdateProfile, authMiddleware.Authenticate)
}
