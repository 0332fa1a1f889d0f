package router

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/adapter/api/middleware"
	"rentalportal/internal/infrastructure/ratelimit"
)

func Setup(e *echo.Echo, portalMiddleware *middleware.PortalMiddleware, authMiddleware *middleware.AuthMiddleware, limiter *ratelimit.RateLimiter) {
	portalGroup := e.Group("/v1/:portal")
	portalGroup.Use(middleware.RateLimit(limiter, ratelimit.ActionRequest))
	portalGroup.Use(portalMiddleware.Resolve)

	SetupSessionRouter(portalGroup, authMiddleware)
	SetupConversationRouter(portalGroup, authMiddleware, limiter)
	SetupUnreadRouter(portalGroup, authMiddleware)
	SetupHealthRouter(e)
}
