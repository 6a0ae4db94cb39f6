package ratelimiter

import (
	"sync"
	"time"
)

// FixedWindowCounter implements the RateLimiter interface using a fixed
// window counter algorithm. It allows a certain number of requests in a
// fixed time window.
type FixedWindowCounter struct {
	limit  int
	window time.Duration

	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// NewFixedWindowCounter creates a new FixedWindowCounter.
// limit: the maximum number of requests allowed in the window.
// window: the duration of the time window.
func NewFixedWindowCounter(limit int, window time.Duration) *FixedWindowCounter {
	return &FixedWindowCounter{
		limit:       limit,
		window:      window,
		windowStart: time.Now(),
	}
}

// Allow resets the counter when the window has passed and increments it if
// the request is within the limit.
func (fwc *FixedWindowCounter) Allow() bool {
	fwc.mu.Lock()
	defer fwc.mu.Unlock()

	now := time.Now()
	if now.After(fwc.windowStart.Add(fwc.window)) {
		fwc.windowStart = now
		fwc.count = 0
	}

	if fwc.count < fwc.limit {
		fwc.count++
		return true
	}
	return false
}
