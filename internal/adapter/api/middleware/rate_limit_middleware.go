package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"rentalportal/internal/infrastructure/metrics"
	"rentalportal/internal/infrastructure/ratelimit"
	"rentalportal/pkg/logger"
)

// RateLimit limits action per client IP and portal.
func RateLimit(limiter *ratelimit.RateLimiter, action string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP() + "|" + c.Param("portal")

			allowed, wait := limiter.Allow(key, action)
			if !allowed {
				metrics.RateLimitHits.WithLabelValues(action).Inc()
				logger.Warn("RATE LIMIT: Blocked %s from %s (reset in %v)", action, key, wait)

				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"error":       "Rate limit exceeded",
					"retry_after": int(wait.Round(time.Second).Seconds()),
				})
			}

			return next(c)
		}
	}
}
