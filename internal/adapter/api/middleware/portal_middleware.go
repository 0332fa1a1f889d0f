package middleware

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/usecase"
	"rentalportal/pkg/response"
)

// PortalKey is the echo context key holding the resolved *usecase.Portal.
const PortalKey = "portal"

type PortalMiddleware struct {
	registry *usecase.PortalRegistry
}

func NewPortalMiddleware(registry *usecase.PortalRegistry) *PortalMiddleware {
	return &PortalMiddleware{registry: registry}
}

// Resolve loads the portal named by the :portal path parameter.
func (m *PortalMiddleware) Resolve(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		portal, err := m.registry.Get(c.Request().Context(), c.Param("portal"))
		if err != nil {
			return response.Error(c, err)
		}
		c.Set(PortalKey, portal)
		return next(c)
	}
}
