package handler

import (
	"github.com/labstack/echo/v4"

	"rentalportal/pkg/errors"
	"rentalportal/pkg/response"
	"rentalportal/pkg/utils"
)

type ConversationHandler struct{}

func NewConversationHandler() *ConversationHandler {
	return &ConversationHandler{}
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// ListConversations returns the active identity's conversations, newest
// first, one page at a time.
func (h *ConversationHandler) ListConversations(c echo.Context) error {
	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	summaries, err := portal.Conversations.List(c.Request().Context())
	if err != nil {
		return response.Error(c, err)
	}

	params := utils.GetPaginationParams(c)
	return response.Paginated(c, utils.Page(summaries, params), int64(len(summaries)), params.Page, params.PageSize)
}

func (h *ConversationHandler) GetThread(c echo.Context) error {
	counterpartID, err := counterpartParam(c)
	if err != nil {
		return response.Error(c, err)
	}
	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	messages, err := portal.Conversations.Thread(c.Request().Context(), counterpartID)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Success(c, messages)
}

func (h *ConversationHandler) SendMessage(c echo.Context) error {
	counterpartID, err := counterpartParam(c)
	if err != nil {
		return response.Error(c, err)
	}

	var req sendMessageRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, errors.BadRequest("Invalid request body", err))
	}
	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	msg, err := portal.Conversations.Send(c.Request().Context(), counterpartID, req.Content)
	if err != nil {
		return response.Error(c, err)
	}
	return response.Created(c, msg)
}

// MarkRead zeroes the conversation's unread count at once and answers when
// the backend has acknowledged, or with the error after the rollback.
func (h *ConversationHandler) MarkRead(c echo.Context) error {
	counterpartID, err := counterpartParam(c)
	if err != nil {
		return response.Error(c, err)
	}
	portal, err := portalFrom(c)
	if err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	done := portal.Unread.MarkConversationRead(ctx, counterpartID)
	select {
	case err := <-done:
		if err != nil {
			return response.Error(c, err)
		}
	case <-ctx.Done():
		return response.Error(c, errors.NetworkFailure("Request cancelled before the backend answered", ctx.Err()))
	}

	return response.Success(c, map[string]interface{}{
		"counterpartId": counterpartID,
		"unreadCount":   portal.Unread.ObservedUnread(counterpartID),
		"total":         portal.Unread.ObservedUnreadTotal(),
	})
}
