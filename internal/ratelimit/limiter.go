// Package ratelimit counts requests per key over a fixed window. It protects the
// public waitlist endpoints from flooding; it is not an admission control.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Decision reports the outcome of one Allow call. Count includes the current
// request, so the first call in a window has Count == 1.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter decides whether one more request under key fits the limit for the
// current window. Implementations must be safe for concurrent use.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int) Decision
}

// Memory is an in-process fixed-window limiter. Counts are per instance, so
// behind multiple replicas the effective limit multiplies; use Redis there.
type Memory struct {
	mu     sync.Mutex
	window time.Duration
	counts map[string]windowCount
}

type windowCount struct {
	n       int
	resetAt time.Time
}

// NewMemory returns an in-process limiter with the given window.
func NewMemory(window time.Duration) *Memory {
	if window <= 0 {
		window = time.Minute
	}
	return &Memory{window: window, counts: make(map[string]windowCount)}
}

func (m *Memory) Allow(_ context.Context, key string, limit int) Decision {
	if limit <= 0 {
		limit = 1
	}
	now := time.Now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()
	for k, c := range m.counts {
		if now.After(c.resetAt) {
			delete(m.counts, k)
		}
	}
	c, ok := m.counts[key]
	if !ok || now.After(c.resetAt) {
		c = windowCount{resetAt: now.Add(m.window)}
	}
	c.n++
	m.counts[key] = c

	return decide(c.n, limit, c.resetAt)
}

func decide(count, limit int, resetAt time.Time) Decision {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   count <= limit,
		Count:     count,
		Limit:     limit,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
