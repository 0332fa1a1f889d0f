package usecase

import (
	"context"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/infrastructure/marketapi"
)

// MessageService is the rental backend's message API.
type MessageService interface {
	FetchMessages(ctx context.Context, participantID int64) ([]entity.Message, error)
	FetchThread(ctx context.Context, participantID, counterpartID int64) ([]entity.Message, error)
	FetchUnreadMap(ctx context.Context, participantID int64) (map[int64]int, error)
	FetchUnreadTotal(ctx context.Context, participantID int64) (int, error)
	MarkRead(ctx context.Context, participantID, counterpartID int64) error
	SendMessage(ctx context.Context, senderID, receiverID int64, content string) (*entity.Message, error)
}

// DirectoryService resolves counterpart IDs to display names.
type DirectoryService interface {
	MerchantNames(ctx context.Context, merchantIDs []int64) (map[int64]string, error)
	UserNicknames(ctx context.Context, userIDs []int64) (map[int64]string, error)
}

// AuthService is the rental backend's login and registration API.
type AuthService interface {
	Login(ctx context.Context, role entity.Role, creds marketapi.Credentials) (*marketapi.AuthResult, error)
	Register(ctx context.Context, role entity.Role, reg marketapi.Registration) (*marketapi.AuthResult, error)
}

// SessionSource is the part of SessionUseCase the unread engine and the
// conversation usecase depend on.
type SessionSource interface {
	Current() entity.Session
	Subscribe(fn func(entity.Session)) (unsubscribe func())
}
