package usecase

import (
	"context"
	"sync"
	"time"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/infrastructure/marketapi"
	"rentalportal/pkg/errors"
)

// fakeMessages is an in-process rental backend. Fetches return a copy of
// the unread map taken when the call starts.
type fakeMessages struct {
	mu sync.Mutex

	unread      map[int64]int
	totalOffset int
	messages    []entity.Message
	names       map[int64]string
	nextID      int64

	unreadErr   error
	markReadErr error

	// markReadGate blocks MarkRead until it is closed
	markReadGate chan struct{}
	// blockNextFetch blocks the next FetchUnreadMap until it is closed
	blockNextFetch chan struct{}

	markReadCalls int
	fetchCalls    int
	sent          []entity.Message
}

func newFakeMessages(unread map[int64]int) *fakeMessages {
	return &fakeMessages{unread: unread, names: map[int64]string{}, nextID: 100}
}

func (f *fakeMessages) setUnread(counterpart int64, n int) {
	f.mu.Lock()
	f.unread[counterpart] = n
	f.mu.Unlock()
}

func (f *fakeMessages) setUnreadErr(err error) {
	f.mu.Lock()
	f.unreadErr = err
	f.mu.Unlock()
}

func (f *fakeMessages) calls() (fetches, markReads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.markReadCalls
}

func (f *fakeMessages) FetchMessages(ctx context.Context, participantID int64) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Message, 0, len(f.messages))
	for _, m := range f.messages {
		if m.SenderID == participantID || m.ReceiverID == participantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMessages) FetchThread(ctx context.Context, participantID, counterpartID int64) ([]entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]entity.Message, 0)
	// newest first, as the backend does
	for i := len(f.messages) - 1; i >= 0; i-- {
		if f.messages[i].Between(participantID, counterpartID) {
			out = append(out, f.messages[i])
		}
	}
	return out, nil
}

func (f *fakeMessages) FetchUnreadMap(ctx context.Context, participantID int64) (map[int64]int, error) {
	f.mu.Lock()
	f.fetchCalls++
	err := f.unreadErr
	snapshot := make(map[int64]int, len(f.unread))
	for k, v := range f.unread {
		snapshot[k] = v
	}
	gate := f.blockNextFetch
	f.blockNextFetch = nil
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, errors.NetworkFailure("cancelled", ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeMessages) FetchUnreadTotal(ctx context.Context, participantID int64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.totalOffset
	for _, v := range f.unread {
		total += v
	}
	return total, nil
}

func (f *fakeMessages) MarkRead(ctx context.Context, participantID, counterpartID int64) error {
	f.mu.Lock()
	f.markReadCalls++
	gate := f.markReadGate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markReadErr != nil {
		return f.markReadErr
	}
	f.unread[counterpartID] = 0
	return nil
}

func (f *fakeMessages) SendMessage(ctx context.Context, senderID, receiverID int64, content string) (*entity.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	msg := entity.Message{
		ID:         f.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Content:    content,
		CreatedAt:  entity.NewTimestamp(time.Now()),
	}
	f.messages = append(f.messages, msg)
	f.sent = append(f.sent, msg)
	return &msg, nil
}

func (f *fakeMessages) MerchantNames(ctx context.Context, merchantIDs []int64) (map[int64]string, error) {
	return f.lookup(merchantIDs), nil
}

func (f *fakeMessages) UserNicknames(ctx context.Context, userIDs []int64) (map[int64]string, error) {
	return f.lookup(userIDs), nil
}

func (f *fakeMessages) lookup(ids []int64) map[int64]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[int64]string)
	for _, id := range ids {
		if name, ok := f.names[id]; ok {
			out[id] = name
		}
	}
	return out
}

type fakeAuth struct {
	result *marketapi.AuthResult
	err    error
	calls  []entity.Role
}

func (f *fakeAuth) Login(ctx context.Context, role entity.Role, creds marketapi.Credentials) (*marketapi.AuthResult, error) {
	f.calls = append(f.calls, role)
	return f.result, f.err
}

func (f *fakeAuth) Register(ctx context.Context, role entity.Role, reg marketapi.Registration) (*marketapi.AuthResult, error) {
	f.calls = append(f.calls, role)
	return f.result, f.err
}
