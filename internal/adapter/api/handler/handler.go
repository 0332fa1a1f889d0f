package handler

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"rentalportal/internal/adapter/api/middleware"
	"rentalportal/internal/usecase"
	"rentalportal/pkg/errors"
)

var (
	sessionHandler      *SessionHandler
	conversationHandler *ConversationHandler
	unreadHandler       *UnreadHandler
	healthHandler       *HealthHandler
)

func Setup(registry *usecase.PortalRegistry) {
	sessionHandler = NewSessionHandler()
	conversationHandler = NewConversationHandler()
	unreadHandler = NewUnreadHandler()
	healthHandler = NewHealthHandler(registry)
}

func GetSessionHandler() *SessionHandler {
	return sessionHandler
}

func GetConversationHandler() *ConversationHandler {
	return conversationHandler
}

func GetUnreadHandler() *UnreadHandler {
	return unreadHandler
}

func GetHealthHandler() *HealthHandler {
	return healthHandler
}

func portalFrom(c echo.Context) (*usecase.Portal, error) {
	portal, ok := c.Get(middleware.PortalKey).(*usecase.Portal)
	if !ok {
		return nil, errors.Internal("Portal not resolved", nil)
	}
	return portal, nil
}

func counterpartParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("counterpartId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.BadRequest("Invalid counterpart ID", err)
	}
	return id, nil
}
