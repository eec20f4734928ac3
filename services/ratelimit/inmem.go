package ratelimitsvc

import (
	"context"
	"sync"
	"time"

	"github.com/campuskit/identity/core"
)

type window struct {
	count    int
	resetsAt time.Time
}

// InmemLimiter is a single-process fixed-window limiter for dev and tests.
type InmemLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	window  time.Duration
	limit   int
}

var _ core.RateLimiter = (*InmemLimiter)(nil)

func NewInmemLimiter(windowDelta time.Duration, limit int) *InmemLimiter {
	return &InmemLimiter{
		windows: make(map[string]*window),
		window:  windowDelta,
		limit:   limit,
	}
}

func (l *InmemLimiter) Allow(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	w, ok := l.windows[key]
	if !ok || now.After(w.resetsAt) {
		l.windows[key] = &window{count: 1, resetsAt: now.Add(l.window)}
		return nil
	}
	w.count++
	if w.count > l.limit {
		return core.ErrRateLimited
	}
	return nil
}
