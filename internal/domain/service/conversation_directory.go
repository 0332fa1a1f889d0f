package service

import (
	"sort"

	"rentalportal/internal/domain/entity"
)

// CounterpartAllowed applies the role-discrimination rule of a directory
// owned by activeID. Customers only talk to merchants, merchants only to
// non-merchants other than themselves, and admins to anyone but themselves.
func CounterpartAllowed(role entity.Role, activeID, counterpartID int64) bool {
	if counterpartID == activeID {
		return false
	}
	switch role {
	case entity.RoleCustomer:
		return entity.IsMerchantID(counterpartID)
	case entity.RoleMerchant:
		return !entity.IsMerchantID(counterpartID)
	case entity.RoleAdmin:
		return true
	}
	return false
}

// BuildConversations groups messages by counterpart and keeps the latest
// message of each, newest conversation first. Messages that do not involve
// activeID are ignored. The result depends only on the arguments, so repeated
// calls with the same input return the same ordered list.
func BuildConversations(activeID int64, role entity.Role, messages []entity.Message) []entity.Conversation {
	index := make(map[int64]int)
	conversations := make([]entity.Conversation, 0)

	for _, msg := range messages {
		if msg.SenderID != activeID && msg.ReceiverID != activeID {
			continue
		}
		counterpart := msg.Counterpart(activeID)
		if !CounterpartAllowed(role, activeID, counterpart) {
			continue
		}

		i, seen := index[counterpart]
		if !seen {
			index[counterpart] = len(conversations)
			conversations = append(conversations, entity.Conversation{
				CounterpartID: counterpart,
				LastMessage:   msg,
			})
			continue
		}
		if msg.CreatedAt.After(conversations[i].LastMessage.CreatedAt.Time) {
			conversations[i].LastMessage = msg
		}
	}

	sort.SliceStable(conversations, func(a, b int) bool {
		return conversations[a].LastMessage.CreatedAt.After(conversations[b].LastMessage.CreatedAt.Time)
	})
	return conversations
}

// Thread returns the messages exchanged by activeID and counterpartID,
// oldest first.
func Thread(activeID, counterpartID int64, messages []entity.Message) []entity.Message {
	thread := make([]entity.Message, 0)
	for _, msg := range messages {
		if msg.Between(activeID, counterpartID) {
			thread = append(thread, msg)
		}
	}
	sort.SliceStable(thread, func(a, b int) bool {
		return thread[a].CreatedAt.Before(thread[b].CreatedAt.Time)
	})
	return thread
}
