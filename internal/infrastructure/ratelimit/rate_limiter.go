package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Actions with their own budgets. Anything else gets the default budget.
const (
	ActionSendMessage = "send_message"
	ActionLogin       = "login"
	ActionMarkRead    = "mark_read"
	ActionRequest     = "request"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages rate limiting for different participants and actions
type RateLimiter struct {
	buckets map[string]*bucket
	mutex   sync.Mutex
	now     func() time.Time
}

func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func limiterFor(action string) *rate.Limiter {
	switch action {
	case ActionSendMessage:
		// 10 messages per minute
		return rate.NewLimiter(rate.Every(6*time.Second), 10)
	case ActionLogin:
		// 5 attempts per minute
		return rate.NewLimiter(rate.Every(12*time.Second), 5)
	case ActionMarkRead:
		return rate.NewLimiter(rate.Every(time.Second), 30)
	case ActionRequest:
		// gateway traffic from one client, polling included
		return rate.NewLimiter(rate.Every(100*time.Millisecond), 60)
	default:
		// 20 actions per minute
		return rate.NewLimiter(rate.Every(3*time.Second), 20)
	}
}

// Allow reports whether key may perform action now. When it may not, the
// returned duration is how long until the next token is available.
func (rl *RateLimiter) Allow(key, action string) (bool, time.Duration) {
	id := key + ":" + action
	now := rl.now()

	rl.mutex.Lock()
	b, exists := rl.buckets[id]
	if !exists {
		b = &bucket{limiter: limiterFor(action)}
		rl.buckets[id] = b
	}
	b.lastSeen = now
	rl.mutex.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 0
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)
	return false, delay
}

// GetStatus returns current rate limit status for a key action
func (rl *RateLimiter) GetStatus(key, action string) (tokens int, maxTokens int) {
	rl.mutex.Lock()
	b, exists := rl.buckets[key+":"+action]
	rl.mutex.Unlock()

	if !exists {
		return 0, 0
	}
	return int(b.limiter.TokensAt(rl.now())), b.limiter.Burst()
}

// Cleanup removes buckets that haven't been used for an hour
func (rl *RateLimiter) Cleanup() {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()
	for key, b := range rl.buckets {
		if now.Sub(b.lastSeen) > time.Hour {
			delete(rl.buckets, key)
		}
	}
}

// StartCleanupRoutine runs Cleanup every interval until ctx is done.
func (rl *RateLimiter) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.Cleanup()
			}
		}
	}()
}
