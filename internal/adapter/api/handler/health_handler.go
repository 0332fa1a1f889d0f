package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"rentalportal/internal/usecase"
)

type HealthHandler struct {
	registry *usecase.PortalRegistry
}

func NewHealthHandler(registry *usecase.PortalRegistry) *HealthHandler {
	return &HealthHandler{
		registry: registry,
	}
}

func (h *HealthHandler) CheckHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":  "Server is running",
		"time":    time.Now().Format(time.RFC3339),
		"portals": usecase.PortalNames(),
		"active":  h.registry.Active(),
	})
}
