package marketapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"rentalportal/internal/domain/entity"
	"rentalportal/pkg/errors"
)

// FetchMessages returns every message the participant sent or received.
func (c *Client) FetchMessages(ctx context.Context, participantID int64) ([]entity.Message, error) {
	var messages []entity.Message
	path := fmt.Sprintf("/messages/user/%d", participantID)
	if err := c.do(ctx, "messages.list", http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// FetchThread returns the messages exchanged by two participants.
func (c *Client) FetchThread(ctx context.Context, participantID, counterpartID int64) ([]entity.Message, error) {
	var messages []entity.Message
	path := fmt.Sprintf("/messages?userA=%d&userB=%d", participantID, counterpartID)
	if err := c.do(ctx, "messages.thread", http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// FetchUnreadMap returns the participant's unread count keyed by counterpart.
func (c *Client) FetchUnreadMap(ctx context.Context, participantID int64) (map[int64]int, error) {
	var raw map[string]int
	path := fmt.Sprintf("/messages/unread-count-by-user/%d", participantID)
	if err := c.do(ctx, "messages.unread_map", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return parseIDKeys(raw)
}

// FetchUnreadTotal returns the participant's aggregate unread count.
func (c *Client) FetchUnreadTotal(ctx context.Context, participantID int64) (int, error) {
	var total int
	path := fmt.Sprintf("/messages/unread-count/%d", participantID)
	if err := c.do(ctx, "messages.unread_total", http.MethodGet, path, nil, &total); err != nil {
		return 0, err
	}
	return total, nil
}

type markReadRequest struct {
	UserID      int64 `json:"userId"`
	OtherUserID int64 `json:"otherUserId"`
}

// MarkRead marks every message counterpartID sent to participantID as read.
func (c *Client) MarkRead(ctx context.Context, participantID, counterpartID int64) error {
	return c.do(ctx, "messages.mark_read", http.MethodPut, "/messages/conversation/read", markReadRequest{
		UserID:      participantID,
		OtherUserID: counterpartID,
	}, nil)
}

type sendMessageRequest struct {
	SenderID   int64  `json:"senderId"`
	ReceiverID int64  `json:"receiverId"`
	Content    string `json:"content"`
}

func (c *Client) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (*entity.Message, error) {
	var msg entity.Message
	err := c.do(ctx, "messages.send", http.MethodPost, "/messages", sendMessageRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
	}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// MerchantNames resolves merchant IDs to company names. Unknown IDs are
// simply absent from the result.
func (c *Client) MerchantNames(ctx context.Context, merchantIDs []int64) (map[int64]string, error) {
	if len(merchantIDs) == 0 {
		return map[int64]string{}, nil
	}
	var raw map[string]string
	if err := c.do(ctx, "merchant.batch_info", http.MethodPost, "/merchant/batch-info", merchantIDs, &raw); err != nil {
		return nil, err
	}
	return parseIDKeys(raw)
}

// UserNicknames resolves customer IDs to nicknames.
func (c *Client) UserNicknames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	if len(userIDs) == 0 {
		return map[int64]string{}, nil
	}
	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	var raw map[string]string
	path := "/user/nicknames?userIds=" + url.QueryEscape(strings.Join(ids, ","))
	if err := c.do(ctx, "user.nicknames", http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	return parseIDKeys(raw)
}

func parseIDKeys[V any](raw map[string]V) (map[int64]V, error) {
	out := make(map[int64]V, len(raw))
	for key, value := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, errors.ServerRejected("Malformed participant id in response", 0, err)
		}
		out[id] = value
	}
	return out, nil
}
