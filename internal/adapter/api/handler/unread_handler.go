package handler

import (
	"github.com/labstack/echo/v4"

	"rentalportal/internal/usecase"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/response"
)

type UnreadHandler struct{}

func NewUnreadHandler() *UnreadHandler {
	return &UnreadHandler{}
}

type adjustRequest struct {
	Count int `json:"count" validate:"omitempty,gt=0"`
}

func (h *UnreadHandler) GetUnread(c echo.Context) error {
	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, portal.Unread.Snapshot())
}

func (h *UnreadHandler) Refresh(c echo.Context) error {
	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	if err := portal.Unread.Refresh(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, portal.Unread.Snapshot())
}

func (h *UnreadHandler) Increase(c echo.Context) error {
	return h.adjust(c, func(unread *usecase.UnreadUseCase, id int64, n int) {
		unread.IncreaseUnread(id, n)
	})
}

func (h *UnreadHandler) Decrease(c echo.Context) error {
	return h.adjust(c, func(unread *usecase.UnreadUseCase, id int64, n int) {
		unread.DecreaseUnread(id, n)
	})
}

func (h *UnreadHandler) Clear(c echo.Context) error {
	return h.adjust(c, func(unread *usecase.UnreadUseCase, id int64, _ int) {
		unread.ClearUnread(id)
	})
}

// adjust applies a local, non-network change. The body is optional and
// defaults to a count of one.
func (h *UnreadHandler) adjust(c echo.Context, apply func(*usecase.UnreadUseCase, int64, int)) error {
	counterpartID, err := counterpartParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req adjustRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return response.Error(c, errors.BadRequest("Invalid request body", err))
		}
		if err := c.Validate(&req); err != nil {
			return response.Error(c, err)
		}
	}
	if req.Count == 0 {
		req.Count = 1
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}
	apply(portal.Unread, counterpartID, req.Count)

	return response.Success(c, map[string]interface{}{
		"counterpartId": counterpartID,
		"unreadCount":   portal.Unread.ObservedUnread(counterpartID),
		"total":         portal.Unread.ObservedUnreadTotal(),
	})
}
