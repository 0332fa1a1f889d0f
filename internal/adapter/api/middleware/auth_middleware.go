package middleware

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/usecase"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/response"
)

type AuthMiddleware struct{}

func NewAuthMiddleware() *AuthMiddleware {
	return &AuthMiddleware{}
}

// Authenticate re-validates the portal's persisted identity before every
// request, so a logout or login in another portal is seen immediately.
func (m *AuthMiddleware) Authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		portal, ok := c.Get(PortalKey).(*usecase.Portal)
		if !ok {
			return response.Error(c, errors.Internal("Portal not resolved", nil))
		}

		if !portal.Session.CheckAuthStatus(c.Request().Context(), entity.Role("")) {
			return response.Error(c, errors.AuthInvalid("Authentication required", nil))
		}

		session := portal.Session.Current()
		c.Set("participantID", session.ParticipantID())
		c.Set("role", session.Role)

		return next(c)
	}
}
