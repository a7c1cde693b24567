package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter implements a sliding window rate limiter per key.
// Keys with no call inside the window are dropped at most once per window.
type MemoryLimiter struct {
	mu        sync.Mutex
	requests  map[string][]time.Time
	window    time.Duration
	now       func() time.Time
	lastSweep time.Time
}

// NewMemoryLimiter creates an in-process limiter. A zero window means one hour.
func NewMemoryLimiter(window time.Duration) *MemoryLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	return &MemoryLimiter{
		requests: make(map[string][]time.Time),
		window:   window,
		now:      time.Now,
	}
}

// CheckUserRateLimit implements Limiter.
func (rl *MemoryLimiter) CheckUserRateLimit(_ context.Context, component string, limit int, userID string) (bool, error) {
	return rl.allow(userKey(component, userID), limit), nil
}

// CheckGlobalRateLimit implements Limiter.
func (rl *MemoryLimiter) CheckGlobalRateLimit(_ context.Context, component string, limit int) (bool, error) {
	return rl.allow(globalKey(component), limit), nil
}

// allow checks if the given key is within its rate limit.
// Returns true if the request is allowed, false if rate limited.
func (rl *MemoryLimiter) allow(key string, limit int) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	if now.Sub(rl.lastSweep) >= rl.window {
		rl.sweep(cutoff)
		rl.lastSweep = now
	}

	// Remove expired entries
	reqs := rl.requests[key]
	valid := reqs[:0]
	for _, t := range reqs {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// sweep removes keys whose newest call is at or before cutoff (called with lock held).
func (rl *MemoryLimiter) sweep(cutoff time.Time) {
	for key, reqs := range rl.requests {
		if len(reqs) == 0 || !reqs[len(reqs)-1].After(cutoff) {
			delete(rl.requests, key)
		}
	}
}

// Len returns the number of tracked keys.
func (rl *MemoryLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.requests)
}

var _ Limiter = (*MemoryLimiter)(nil)
