package usecase

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentalportal/internal/domain/entity"
	"rentalportal/pkg/errors"
)

const (
	customerID int64 = 42
	merchantX  int64 = 5000000
	merchantY  int64 = 5000001
)

func newUnreadFixture(t *testing.T, unread map[int64]int, pollInterval, reconcileDelay time.Duration) (*UnreadUseCase, *fakeMessages, *SessionUseCase) {
	t.Helper()
	session, _, _ := newSessionFixture()
	_, err := session.Login(context.Background(), testToken, profileJSON(customerID), entity.RoleCustomer)
	require.NoError(t, err)

	messages := newFakeMessages(unread)
	engine := NewUnreadUseCase(session, messages, pollInterval, reconcileDelay)
	engine.Start()
	t.Cleanup(engine.Close)

	require.Eventually(t, func() bool {
		fetches, _ := messages.calls()
		return fetches >= 1 && !engine.Loading()
	}, time.Second, 5*time.Millisecond)
	return engine, messages, session
}

func TestUnread_OptimisticDecrementIsSynchronous(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3, merchantY: 2}, time.Hour, 20*time.Millisecond)
	require.Equal(t, 3, engine.ObservedUnread(merchantX))
	require.Equal(t, 5, engine.ObservedUnreadTotal())

	gate := make(chan struct{})
	messages.mu.Lock()
	messages.markReadGate = gate
	messages.mu.Unlock()

	done := engine.MarkConversationRead(context.Background(), merchantX)

	// before the backend has answered
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))
	assert.Equal(t, 2, engine.ObservedUnreadTotal())
	assert.Equal(t, []int64{merchantX}, engine.Snapshot().Adjusting)

	close(gate)
	require.NoError(t, <-done)

	assert.Eventually(t, func() bool {
		return len(engine.Snapshot().Adjusting) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))
	assert.Equal(t, 2, engine.ObservedUnreadTotal())
}

func TestUnread_MarkReadConvergesToServerCount(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 150*time.Millisecond)

	done := engine.MarkConversationRead(context.Background(), merchantX)
	require.NoError(t, <-done)

	// a message arrived after the backend marked the conversation read
	messages.setUnread(merchantX, 1)
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))

	assert.Eventually(t, func() bool {
		return engine.ObservedUnread(merchantX) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, engine.Snapshot().Adjusting)
}

func TestUnread_MarkReadFailureRollsBack(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3, merchantY: 2}, time.Hour, 20*time.Millisecond)

	gate := make(chan struct{})
	messages.mu.Lock()
	messages.markReadErr = errors.NetworkFailure("Rental service unreachable", nil)
	messages.markReadGate = gate
	messages.mu.Unlock()

	done := engine.MarkConversationRead(context.Background(), merchantX)
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))
	assert.Equal(t, 2, engine.ObservedUnreadTotal())

	close(gate)
	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeNetworkFailure))

	// rollback and corrective refresh happen before the error is delivered
	assert.Equal(t, 3, engine.ObservedUnread(merchantX))
	assert.Equal(t, 5, engine.ObservedUnreadTotal())
	assert.Empty(t, engine.Snapshot().Adjusting)
	fetches, _ := messages.calls()
	assert.Equal(t, 2, fetches)
}

func TestUnread_ConcurrentMarkReadJoinsOneOperation(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 20*time.Millisecond)

	gate := make(chan struct{})
	messages.mu.Lock()
	messages.markReadErr = errors.ServerRejected("会话不存在", 400, nil)
	messages.markReadGate = gate
	messages.mu.Unlock()

	first := engine.MarkConversationRead(context.Background(), merchantX)
	second := engine.MarkConversationRead(context.Background(), merchantX)
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))

	close(gate)
	assert.Error(t, <-first)
	assert.Error(t, <-second)

	_, markReads := messages.calls()
	assert.Equal(t, 1, markReads)
	// only the one decrement is undone
	assert.Equal(t, 3, engine.ObservedUnread(merchantX))
}

func TestUnread_RefreshSkipsAdjustingCounterpart(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3, merchantY: 2}, time.Hour, 20*time.Millisecond)

	gate := make(chan struct{})
	messages.mu.Lock()
	messages.markReadGate = gate
	messages.mu.Unlock()

	done := engine.MarkConversationRead(context.Background(), merchantX)
	messages.setUnread(merchantY, 4)

	require.NoError(t, engine.Refresh(context.Background()))
	assert.Equal(t, 0, engine.ObservedUnread(merchantX), "in-flight decrement must not be clobbered")
	assert.Equal(t, 4, engine.ObservedUnread(merchantY))

	close(gate)
	require.NoError(t, <-done)
}

func TestUnread_StaleSnapshotCannotResurrectBadge(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 10*time.Millisecond)

	gate := make(chan struct{})
	messages.mu.Lock()
	messages.blockNextFetch = gate
	messages.mu.Unlock()

	// a refresh that captured X=3 before the conversation was opened
	stale := make(chan error, 1)
	go func() { stale <- engine.Refresh(context.Background()) }()
	require.Eventually(t, func() bool { return engine.Loading() }, time.Second, time.Millisecond)

	require.NoError(t, <-engine.MarkConversationRead(context.Background(), merchantX))
	assert.Eventually(t, func() bool {
		fetches, _ := messages.calls()
		return fetches >= 3 && len(engine.Snapshot().Adjusting) == 0
	}, time.Second, 5*time.Millisecond)

	close(gate)
	require.NoError(t, <-stale)
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))
}

func TestUnread_ReconcileFailureKeepsOptimisticBaseline(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 20*time.Millisecond)

	messages.setUnreadErr(errors.NetworkFailure("down", nil))
	require.NoError(t, <-engine.MarkConversationRead(context.Background(), merchantX))

	assert.Eventually(t, func() bool {
		return len(engine.Snapshot().Adjusting) == 0
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, engine.ObservedUnread(merchantX))

	messages.setUnreadErr(nil)
	messages.setUnread(merchantX, 2)
	require.NoError(t, engine.Refresh(context.Background()))
	assert.Equal(t, 2, engine.ObservedUnread(merchantX))
}

func TestUnread_FailedRefreshKeepsLastCounts(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 20*time.Millisecond)

	messages.setUnreadErr(errors.NetworkFailure("down", nil))
	err := engine.Refresh(context.Background())
	assert.True(t, errors.Is(err, errors.CodeNetworkFailure))
	assert.Equal(t, 3, engine.ObservedUnread(merchantX))
}

func TestUnread_LocalDeltasAreAbsorbedByRefresh(t *testing.T) {
	engine, _, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 20*time.Millisecond)

	engine.IncreaseUnread(merchantX, 2)
	engine.IncreaseUnread(merchantY, 1)
	assert.Equal(t, 5, engine.ObservedUnread(merchantX))
	assert.Equal(t, 6, engine.ObservedUnreadTotal())

	engine.ClearUnread(merchantY)
	assert.Equal(t, 0, engine.ObservedUnread(merchantY))

	require.NoError(t, engine.Refresh(context.Background()))
	assert.Equal(t, 3, engine.ObservedUnread(merchantX))
	assert.Equal(t, 0, engine.ObservedUnread(merchantY))

	engine.ClearAll()
	assert.Equal(t, 0, engine.ObservedUnreadTotal())
}

func TestUnread_ObservedNeverNegative(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 1, merchantY: -4}, time.Hour, time.Millisecond)
	assert.Equal(t, 0, engine.ObservedUnread(merchantY))

	rng := rand.New(rand.NewSource(7))
	counterparts := []int64{merchantX, merchantY}
	for i := 0; i < 300; i++ {
		c := counterparts[rng.Intn(len(counterparts))]
		switch rng.Intn(5) {
		case 0:
			engine.IncreaseUnread(c, rng.Intn(3)+1)
		case 1:
			engine.DecreaseUnread(c, rng.Intn(6)+1)
		case 2:
			engine.MarkConversationRead(context.Background(), c)
		case 3:
			messages.setUnread(c, rng.Intn(5)-1)
			_ = engine.Refresh(context.Background())
		case 4:
			engine.ClearUnread(c)
		}
		for _, cp := range counterparts {
			require.GreaterOrEqual(t, engine.ObservedUnread(cp), 0)
		}
		require.GreaterOrEqual(t, engine.ObservedUnreadTotal(), 0)
	}
}

func TestUnread_TotalDriftDoesNotChangeCounts(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 20*time.Millisecond)

	messages.mu.Lock()
	messages.totalOffset = 7
	messages.mu.Unlock()

	require.NoError(t, engine.Refresh(context.Background()))
	assert.Equal(t, 3, engine.ObservedUnreadTotal())
}

func TestUnread_LogoutStopsPollingAndDiscardsInFlight(t *testing.T) {
	engine, messages, session := newUnreadFixture(t, map[int64]int{merchantX: 3}, 10*time.Millisecond, 20*time.Millisecond)

	assert.Eventually(t, func() bool {
		fetches, _ := messages.calls()
		return fetches >= 3
	}, time.Second, 5*time.Millisecond)

	gate := make(chan struct{})
	messages.mu.Lock()
	messages.blockNextFetch = gate
	messages.mu.Unlock()
	require.Eventually(t, func() bool { return engine.Loading() }, time.Second, time.Millisecond)

	require.NoError(t, session.Logout(context.Background()))
	close(gate)

	assert.Equal(t, 0, engine.ObservedUnreadTotal())
	assert.Equal(t, int64(0), engine.Snapshot().ParticipantID)

	time.Sleep(20 * time.Millisecond)
	before, _ := messages.calls()
	assert.Never(t, func() bool {
		after, _ := messages.calls()
		return after != before
	}, 100*time.Millisecond, 10*time.Millisecond)

	// a new session re-arms the timer
	_, err := session.Login(context.Background(), testToken, profileJSON(customerID), entity.RoleCustomer)
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		return engine.ObservedUnread(merchantX) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestUnread_RequiresSession(t *testing.T) {
	session, _, _ := newSessionFixture()
	engine := NewUnreadUseCase(session, newFakeMessages(map[int64]int{}), time.Hour, time.Millisecond)
	engine.Start()
	defer engine.Close()

	err := <-engine.MarkConversationRead(context.Background(), merchantX)
	assert.True(t, errors.Is(err, errors.CodeAuthInvalid))
	assert.True(t, errors.Is(engine.Refresh(context.Background()), errors.CodeAuthInvalid))
}

func TestUnread_CloseStopsPendingReconcile(t *testing.T) {
	engine, messages, _ := newUnreadFixture(t, map[int64]int{merchantX: 3}, time.Hour, 50*time.Millisecond)

	require.NoError(t, <-engine.MarkConversationRead(context.Background(), merchantX))
	fetchesAtClose, _ := messages.calls()
	engine.Close()

	assert.Never(t, func() bool {
		fetches, _ := messages.calls()
		return fetches != fetchesAtClose
	}, 150*time.Millisecond, 10*time.Millisecond)
}
