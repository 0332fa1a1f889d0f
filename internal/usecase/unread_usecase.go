package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentalportal/internal/domain/entity"
	"rentalportal/internal/infrastructure/metrics"
	"rentalportal/pkg/errors"
	"rentalportal/pkg/logger"
)

const (
	triggerPoll      = "poll"
	triggerManual    = "manual"
	triggerReconcile = "reconcile"
	triggerRollback  = "rollback"
)

// counterState is one counterpart's unread count. server is the last
// authoritative value, local holds Increase/Decrease/Clear deltas that the
// next refresh absorbs, and owned holds the deltas of mark-read operations
// that have not been reconciled yet. While owned is non-empty the
// counterpart is adjusting and refreshes leave it alone.
type counterState struct {
	server int
	local  int
	owned  map[string]int
	// floor is the first fetch sequence allowed to overwrite server
	floor uint64
}

func (s *counterState) observed() int {
	n := s.server + s.local
	for _, d := range s.owned {
		n += d
	}
	if n < 0 {
		return 0
	}
	return n
}

func (s *counterState) adjusting() bool {
	return len(s.owned) > 0
}

// markReadOp is the single in-flight mark-read call of one counterpart.
// Concurrent callers join it and all receive its result.
type markReadOp struct {
	id          string
	counterpart int64
	participant int64
	generation  uint64
	waiters     []chan error
}

// UnreadUseCase keeps per-counterpart and aggregate unread counts for the
// active session, combining polled snapshots with optimistic local changes.
type UnreadUseCase struct {
	session        SessionSource
	messages       MessageService
	pollInterval   time.Duration
	reconcileDelay time.Duration

	baseCtx    context.Context
	baseCancel context.CancelFunc

	mu          sync.Mutex
	participant int64
	role        entity.Role
	generation  uint64
	fetchSeq    uint64
	appliedSeq  uint64
	counters    map[int64]*counterState
	inflight    map[int64]*markReadOp
	loading     int
	pollCancel  context.CancelFunc
	timers      map[*time.Timer]struct{}
	unsubscribe func()
	closed      bool
}

func NewUnreadUseCase(session SessionSource, messages MessageService, pollInterval, reconcileDelay time.Duration) *UnreadUseCase {
	ctx, cancel := context.WithCancel(context.Background())
	return &UnreadUseCase{
		session:        session,
		messages:       messages,
		pollInterval:   pollInterval,
		reconcileDelay: reconcileDelay,
		baseCtx:        ctx,
		baseCancel:     cancel,
		counters:       make(map[int64]*counterState),
		inflight:       make(map[int64]*markReadOp),
		timers:         make(map[*time.Timer]struct{}),
	}
}

// Start follows the session: polling is armed while it is authenticated and
// torn down whenever it logs out or changes identity.
func (uc *UnreadUseCase) Start() {
	uc.mu.Lock()
	if uc.closed || uc.unsubscribe != nil {
		uc.mu.Unlock()
		return
	}
	uc.mu.Unlock()

	unsubscribe := uc.session.Subscribe(uc.onSession)

	uc.mu.Lock()
	uc.unsubscribe = unsubscribe
	uc.mu.Unlock()

	uc.onSession(uc.session.Current())
}

// Close stops polling and pending reconciliations. Results of requests
// still in flight are discarded.
func (uc *UnreadUseCase) Close() {
	uc.mu.Lock()
	if uc.closed {
		uc.mu.Unlock()
		return
	}
	uc.closed = true
	unsubscribe := uc.unsubscribe
	uc.unsubscribe = nil
	uc.resetLocked(0)
	uc.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	uc.baseCancel()
}

func (uc *UnreadUseCase) onSession(s entity.Session) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if uc.closed {
		return
	}
	id := s.ParticipantID()
	if id == uc.participant && s.Role == uc.role && (id == 0 || uc.pollCancel != nil) {
		return
	}

	uc.resetLocked(id)
	if id == 0 {
		return
	}
	uc.role = s.Role

	ctx, cancel := context.WithCancel(uc.baseCtx)
	uc.pollCancel = cancel
	go uc.poll(ctx, uc.generation)
}

// resetLocked discards every count and pending operation and moves to a new
// generation so that late responses are ignored.
func (uc *UnreadUseCase) resetLocked(participant int64) {
	uc.generation++
	uc.participant = participant
	uc.role = ""
	uc.counters = make(map[int64]*counterState)
	uc.inflight = make(map[int64]*markReadOp)
	uc.appliedSeq = 0
	for t := range uc.timers {
		t.Stop()
	}
	uc.timers = make(map[*time.Timer]struct{})
	if uc.pollCancel != nil {
		uc.pollCancel()
		uc.pollCancel = nil
	}
}

func (uc *UnreadUseCase) poll(ctx context.Context, generation uint64) {
	ticker := time.NewTicker(uc.pollInterval)
	defer ticker.Stop()

	uc.refreshFor(ctx, generation, triggerPoll, nil)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			uc.refreshFor(ctx, generation, triggerPoll, nil)
		}
	}
}

// Refresh fetches the authoritative counts now. It does not move the
// polling phase.
func (uc *UnreadUseCase) Refresh(ctx context.Context) error {
	uc.mu.Lock()
	generation := uc.generation
	participant := uc.participant
	uc.mu.Unlock()

	if participant == 0 {
		return errors.AuthInvalid("No active session", nil)
	}
	return uc.refreshFor(ctx, generation, triggerManual, nil)
}

// refreshFor runs one fetch for generation. When release is set the fetch
// also ends that mark-read operation's adjustment.
func (uc *UnreadUseCase) refreshFor(ctx context.Context, generation uint64, trigger string, release *markReadOp) error {
	uc.mu.Lock()
	if generation != uc.generation || uc.participant == 0 {
		uc.mu.Unlock()
		return nil
	}
	uc.fetchSeq++
	seq := uc.fetchSeq
	participant := uc.participant
	uc.loading++
	uc.mu.Unlock()

	byCounterpart, err := uc.messages.FetchUnreadMap(ctx, participant)
	total := -1
	if err == nil {
		t, totalErr := uc.messages.FetchUnreadTotal(ctx, participant)
		if totalErr != nil {
			logger.Debug("Unread: total unavailable for %d: %v", participant, totalErr)
		} else {
			total = t
		}
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.loading--

	if generation != uc.generation {
		// the session changed underneath; a rejected credential still
		// reaches the caller
		if err == nil {
			metrics.UnreadStaleSnapshots.Inc()
		}
		return err
	}

	if err != nil {
		metrics.UnreadRefreshes.WithLabelValues(trigger, "error").Inc()
		if release != nil {
			// keep the optimistic value as the new baseline
			uc.foldLocked(release)
		}
		if trigger == triggerPoll {
			logger.Warn("Unread poll failed for %d, keeping last counts: %v", participant, err)
		} else {
			logger.Error("Unread refresh Error (%s): %v", trigger, err)
		}
		return err
	}

	uc.applyLocked(seq, byCounterpart, total, release)
	metrics.UnreadRefreshes.WithLabelValues(trigger, "ok").Inc()
	return nil
}

// applyLocked installs a snapshot taken by fetch seq. Adjusting counterparts
// and counterparts whose floor is above seq keep their state.
func (uc *UnreadUseCase) applyLocked(seq uint64, byCounterpart map[int64]int, total int, release *markReadOp) {
	if release != nil {
		st := uc.counters[release.counterpart]
		if st != nil {
			delta := st.owned[release.id]
			delete(st.owned, release.id)
			if st.adjusting() || seq < st.floor || seq < uc.appliedSeq {
				st.server = clamp(st.server + delta)
			}
		}
	}

	if seq < uc.appliedSeq {
		metrics.UnreadStaleSnapshots.Inc()
		return
	}
	uc.appliedSeq = seq

	sum := 0
	for counterpart, n := range byCounterpart {
		sum += clamp(n)
		if _, ok := uc.counters[counterpart]; !ok {
			uc.counters[counterpart] = &counterState{owned: make(map[string]int)}
		}
	}

	for counterpart, st := range uc.counters {
		if st.adjusting() || seq < st.floor {
			continue
		}
		st.server = clamp(byCounterpart[counterpart])
		st.local = 0
	}

	if total >= 0 && total != sum {
		metrics.UnreadTotalDrift.Inc()
		logger.Debug("Unread: backend total %d differs from per-counterpart sum %d", total, sum)
	}
}

// foldLocked ends op's adjustment without a snapshot, keeping its delta.
func (uc *UnreadUseCase) foldLocked(op *markReadOp) {
	st := uc.counters[op.counterpart]
	if st == nil {
		return
	}
	delta, ok := st.owned[op.id]
	if !ok {
		return
	}
	delete(st.owned, op.id)
	st.server = clamp(st.server + delta)
}

// MarkConversationRead zeroes the counterpart's observed count before it
// returns, then asks the backend to mark the conversation read. On success
// an authoritative refresh follows after the reconcile delay. On failure the
// decrement is rolled back and a corrective refresh runs before the error is
// delivered. A call made while another is in flight for the same
// counterpart joins it. The channel yields exactly one value.
func (uc *UnreadUseCase) MarkConversationRead(ctx context.Context, counterpartID int64) <-chan error {
	result := make(chan error, 1)

	uc.mu.Lock()
	if uc.participant == 0 || uc.closed {
		uc.mu.Unlock()
		result <- errors.AuthInvalid("No active session", nil)
		return result
	}

	if op, ok := uc.inflight[counterpartID]; ok {
		op.waiters = append(op.waiters, result)
		uc.mu.Unlock()
		metrics.MarkReadOperations.WithLabelValues("joined").Inc()
		return result
	}

	st := uc.counterLocked(counterpartID)
	op := &markReadOp{
		id:          uuid.NewString(),
		counterpart: counterpartID,
		participant: uc.participant,
		generation:  uc.generation,
		waiters:     []chan error{result},
	}
	if k := st.observed(); k > 0 {
		st.owned[op.id] = -k
	}
	st.floor = uc.fetchSeq + 1
	uc.inflight[counterpartID] = op
	uc.mu.Unlock()

	go uc.runMarkRead(context.WithoutCancel(ctx), op)
	return result
}

func (uc *UnreadUseCase) runMarkRead(ctx context.Context, op *markReadOp) {
	err := uc.messages.MarkRead(ctx, op.participant, op.counterpart)

	uc.mu.Lock()
	if uc.inflight[op.counterpart] == op {
		delete(uc.inflight, op.counterpart)
	}
	if op.generation != uc.generation {
		uc.mu.Unlock()
		op.deliver(err)
		return
	}

	if err == nil {
		metrics.MarkReadOperations.WithLabelValues("acknowledged").Inc()
		uc.scheduleReconcileLocked(op)
		uc.mu.Unlock()
		op.deliver(nil)
		return
	}

	// rollback
	if st := uc.counters[op.counterpart]; st != nil {
		delete(st.owned, op.id)
	}
	metrics.MarkReadOperations.WithLabelValues("rolled_back").Inc()
	uc.mu.Unlock()

	logger.Warn("MarkConversationRead Error: %d with %d rolled back: %v", op.participant, op.counterpart, err)
	uc.refreshFor(uc.baseCtx, op.generation, triggerRollback, nil)
	op.deliver(err)
}

func (uc *UnreadUseCase) scheduleReconcileLocked(op *markReadOp) {
	var timer *time.Timer
	timer = time.AfterFunc(uc.reconcileDelay, func() {
		uc.mu.Lock()
		if _, ok := uc.timers[timer]; !ok {
			uc.mu.Unlock()
			return
		}
		delete(uc.timers, timer)
		uc.mu.Unlock()

		uc.refreshFor(uc.baseCtx, op.generation, triggerReconcile, op)
	})
	uc.timers[timer] = struct{}{}
}

func (op *markReadOp) deliver(err error) {
	for _, w := range op.waiters {
		w <- err
		close(w)
	}
}

// IncreaseUnread adds n to the counterpart's count until the next refresh.
func (uc *UnreadUseCase) IncreaseUnread(counterpartID int64, n int) {
	if n <= 0 {
		return
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.participant == 0 {
		return
	}
	uc.counterLocked(counterpartID).local += n
}

// DecreaseUnread subtracts n from the counterpart's count until the next
// refresh. The observed count never drops below zero.
func (uc *UnreadUseCase) DecreaseUnread(counterpartID int64, n int) {
	if n <= 0 {
		return
	}
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.participant == 0 {
		return
	}
	st := uc.counterLocked(counterpartID)
	if n > st.observed() {
		n = st.observed()
	}
	st.local -= n
}

func (uc *UnreadUseCase) ClearUnread(counterpartID int64) {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if st, ok := uc.counters[counterpartID]; ok {
		st.local -= st.observed()
	}
}

func (uc *UnreadUseCase) ClearAll() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, st := range uc.counters {
		st.local -= st.observed()
	}
}

func (uc *UnreadUseCase) ObservedUnread(counterpartID int64) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if st, ok := uc.counters[counterpartID]; ok {
		return st.observed()
	}
	return 0
}

// ObservedUnreadTotal is recomputed from the per-counterpart counts.
func (uc *UnreadUseCase) ObservedUnreadTotal() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.totalLocked()
}

func (uc *UnreadUseCase) Loading() bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.loading > 0
}

func (uc *UnreadUseCase) Snapshot() entity.UnreadSnapshot {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	snap := entity.UnreadSnapshot{
		ParticipantID: uc.participant,
		ByCounterpart: make(map[int64]int),
		Loading:       uc.loading > 0,
	}
	for counterpart, st := range uc.counters {
		if n := st.observed(); n > 0 {
			snap.ByCounterpart[counterpart] = n
			snap.Total += n
		}
		if st.adjusting() {
			snap.Adjusting = append(snap.Adjusting, counterpart)
		}
	}
	sort.Slice(snap.Adjusting, func(i, j int) bool { return snap.Adjusting[i] < snap.Adjusting[j] })
	return snap
}

func (uc *UnreadUseCase) totalLocked() int {
	total := 0
	for _, st := range uc.counters {
		total += st.observed()
	}
	return total
}

func (uc *UnreadUseCase) counterLocked(counterpartID int64) *counterState {
	st, ok := uc.counters[counterpartID]
	if !ok {
		st = &counterState{owned: make(map[string]int)}
		uc.counters[counterpartID] = st
	}
	return st
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
