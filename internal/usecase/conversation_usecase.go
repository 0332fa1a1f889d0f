package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/domain/service"
	"rentalportal/internal/infrastructure/metrics"
	"rentalportal/internal/infrastructure/ratelimit"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

// UnreadCounter is the read side of the unread engine.
type UnreadCounter interface {
	ObservedUnread(counterpartID int64) int
}

type ConversationUseCase struct {
	session     SessionSource
	messages    MessageService
	directory   DirectoryService
	unread      UnreadCounter
	rateLimiter *ratelimit.RateLimiter
}

func NewConversationUseCase(
	session SessionSource,
	messages MessageService,
	directory DirectoryService,
	unread UnreadCounter,
	rateLimiter *ratelimit.RateLimiter,
) *ConversationUseCase {
	return &ConversationUseCase{
		session:     session,
		messages:    messages,
		directory:   directory,
		unread:      unread,
		rateLimiter: rateLimiter,
	}
}

func (uc *ConversationUseCase) active() (entity.Session, error) {
	s := uc.session.Current()
	if !s.IsAuthenticated || s.Identity == nil {
		return s, errors.AuthInvalid("No active session", nil)
	}
	return s, nil
}

// List returns the active identity's conversations, newest first, with
// counterpart names and the observed unread count of each.
func (uc *ConversationUseCase) List(ctx context.Context) ([]entity.ConversationSummary, error) {
	s, err := uc.active()
	if err != nil {
		return nil, err
	}

	messages, err := uc.messages.FetchMessages(ctx, s.Identity.ID)
	if err != nil {
		logger.Error("ListConversations Error: %v", err)
		return nil, err
	}

	conversations := service.BuildConversations(s.Identity.ID, s.Role, messages)
	names := uc.resolveNames(ctx, conversations)

	summaries := make([]entity.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, entity.ConversationSummary{
			CounterpartID:   conv.CounterpartID,
			CounterpartName: names[conv.CounterpartID],
			LastMessage:     conv.LastMessage,
			UnreadCount:     uc.unread.ObservedUnread(conv.CounterpartID),
		})
	}
	return summaries, nil
}

// resolveNames looks counterpart names up in batches. Lookup failures only
// degrade names to their fallbacks.
func (uc *ConversationUseCase) resolveNames(ctx context.Context, conversations []entity.Conversation) map[int64]string {
	var merchants, users []int64
	for _, conv := range conversations {
		if entity.IsMerchantID(conv.CounterpartID) {
			merchants = append(merchants, conv.CounterpartID)
		} else {
			users = append(users, conv.CounterpartID)
		}
	}

	names := make(map[int64]string, len(conversations))
	if len(merchants) > 0 {
		found, err := uc.directory.MerchantNames(ctx, merchants)
		if err != nil {
			logger.Warn("ListConversations: merchant names unavailable: %v", err)
		}
		for id, name := range found {
			names[id] = name
		}
	}
	if len(users) > 0 {
		found, err := uc.directory.UserNicknames(ctx, users)
		if err != nil {
			logger.Warn("ListConversations: user nicknames unavailable: %v", err)
		}
		for id, name := range found {
			names[id] = name
		}
	}

	for _, conv := range conversations {
		if strings.TrimSpace(names[conv.CounterpartID]) == "" {
			names[conv.CounterpartID] = fallbackName(conv.CounterpartID)
		}
	}
	return names
}

func fallbackName(id int64) string {
	if entity.IsMerchantID(id) {
		return fmt.Sprintf("Merchant %d", id)
	}
	return fmt.Sprintf("User %d", id)
}

// Thread returns the conversation with counterpartID, oldest message first.
func (uc *ConversationUseCase) Thread(ctx context.Context, counterpartID int64) ([]entity.Message, error) {
	s, err := uc.active()
	if err != nil {
		return nil, err
	}
	if !service.CounterpartAllowed(s.Role, s.Identity.ID, counterpartID) {
		return nil, errors.BadRequest("No conversation with this participant", nil)
	}

	messages, err := uc.messages.FetchThread(ctx, s.Identity.ID, counterpartID)
	if err != nil {
		logger.Error("GetThread Error: %v", err)
		return nil, err
	}
	return service.Thread(s.Identity.ID, counterpartID, messages), nil
}

// Send posts a message to counterpartID. Sending never changes the sender's
// own unread counts.
func (uc *ConversationUseCase) Send(ctx context.Context, counterpartID int64, content string) (*entity.Message, error) {
	s, err := uc.active()
	if err != nil {
		return nil, err
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errors.BadRequest("Message content cannot be empty", nil)
	}
	if len(content) > 2000 {
		return nil, errors.BadRequest("Message content too long (max 2000 characters)", nil)
	}
	if !service.CounterpartAllowed(s.Role, s.Identity.ID, counterpartID) {
		return nil, errors.BadRequest("Cannot message this participant", nil)
	}

	if uc.rateLimiter != nil {
		allowed, wait := uc.rateLimiter.Allow(strconv.FormatInt(s.Identity.ID, 10), ratelimit.ActionSendMessage)
		if !allowed {
			metrics.RateLimitHits.WithLabelValues(ratelimit.ActionSendMessage).Inc()
			return nil, errors.TooManyRequests(fmt.Sprintf("Rate limit exceeded, retry in %v", wait.Round(time.Second)), nil)
		}
	}

	msg, err := uc.messages.SendMessage(ctx, s.Identity.ID, counterpartID, content)
	if err != nil {
		logger.Error("SendMessage Error: %v", err)
		return nil, err
	}
	return msg, nil
}
