package memory

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a fixed-window per-user submission counter for running
// without Redis.
type RateLimiter struct {
	max    int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[int64]*window
}

type window struct {
	start time.Time
	count int
}

func NewRateLimiter(max int, windowSize time.Duration) *RateLimiter {
	return &RateLimiter{
		max:     max,
		window:  windowSize,
		clock:   time.Now,
		windows: make(map[int64]*window),
	}
}

func (l *RateLimiter) Allow(_ context.Context, userID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	w, ok := l.windows[userID]
	if !ok || now.Sub(w.start) >= l.window {
		l.windows[userID] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= l.max {
		return false, nil
	}
	w.count++
	return true, nil
}
