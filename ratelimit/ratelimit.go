// Package ratelimit implements a process-local fixed-window request limiter.
//
// The limiter is intentionally not distributed: each process enforces its own
// quota, so horizontally scaled deployments under-enforce the configured
// limits. That trade-off is part of the contract; coordinating through a
// shared store would add a dependency and a network round-trip per request.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often expired entries are garbage collected.
const sweepInterval = 5 * time.Minute

// Decision reports the outcome of a single rate-limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

type entry struct {
	count   int
	resetAt time.Time
}

// Limiter counts requests per key in fixed windows. All state lives inside
// the struct; construct one at startup and share it across handlers.
type Limiter struct {
	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow records one request against key and reports whether it fits within
// limit for the current window. The read-check-increment sequence runs under
// the mutex, so two concurrent requests can never both take the last slot.
func (l *Limiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.maybeSweep(now)

	e, ok := l.entries[key]
	if !ok || now.After(e.resetAt) {
		e = &entry{count: 1, resetAt: now.Add(window)}
		l.entries[key] = e
		return Decision{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAt: e.resetAt}
	}

	if e.count >= limit {
		return Decision{Allowed: false, Limit: limit, Remaining: 0, ResetAt: e.resetAt}
	}

	e.count++
	return Decision{Allowed: true, Limit: limit, Remaining: limit - e.count, ResetAt: e.resetAt}
}

// Reset clears the window for key.
func (l *Limiter) Reset(ctx context.Context, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, key)
}

// maybeSweep drops expired entries, at most once per sweepInterval so that
// abandoned keys cannot grow the map without bound. Caller holds l.mu.
func (l *Limiter) maybeSweep(now time.Time) {
	if now.Sub(l.lastSweep) < sweepInterval {
		return
	}
	l.lastSweep = now

	for k, e := range l.entries {
		if now.After(e.resetAt) {
			delete(l.entries, k)
		}
	}
}
