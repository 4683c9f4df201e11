// Package ratelimit: simple fixed-window limiter variant.
//
// A few endpoints are keyed by raw (identity, limit, window) tuples rather
// than named categories (the webhook callback, chiefly, where the caller is
// a machine and the category taxonomy does not apply). This variant has an
// additional in-process fallback so those endpoints keep a rough ceiling even
// during counter-store outages. The fallback is per-instance and approximate,
// which is acceptable because it only ever runs while the store is down.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// SimpleLimiter enforces raw fixed-window budgets with a local fallback.
type SimpleLimiter struct {
	store   CounterStore // may be nil
	timeout time.Duration

	mu      sync.Mutex
	windows map[string]*localWindow
}

// localWindow is the in-memory fallback counter: fixed-window counting reset
// by wall-clock comparison.
type localWindow struct {
	count   int
	startAt time.Time
}

// NewSimpleLimiter builds the variant limiter. A nil store is allowed; the
// limiter then runs entirely on the in-process fallback.
func NewSimpleLimiter(store CounterStore, timeout time.Duration) *SimpleLimiter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &SimpleLimiter{
		store:   store,
		timeout: timeout,
		windows: make(map[string]*localWindow),
	}
}

// Allow records one event for identity under the given raw budget.
func (l *SimpleLimiter) Allow(ctx context.Context, identity string, limit int, window time.Duration) Result {
	if limit <= 0 {
		return Result{Allowed: true, Limit: limit, Remaining: 0}
	}

	key := "rls:" + identity + ":" + strconv.Itoa(limit) + ":" + strconv.FormatInt(window.Milliseconds(), 10)

	if l.store != nil {
		cctx, cancel := context.WithTimeout(ctx, l.timeout)
		count, resetAfter, err := l.store.Incr(cctx, key, window)
		cancel()
		if err == nil {
			remaining := limit - int(count)
			if remaining < 0 {
				remaining = 0
			}
			return Result{
				Allowed:    count <= int64(limit),
				Limit:      limit,
				Remaining:  remaining,
				ResetAfter: resetAfter,
			}
		}
		// Store outage: fall through to the local counter.
	}

	return l.allowLocal(key, limit, window)
}

// allowLocal is the per-instance fixed-window fallback.
func (l *SimpleLimiter) allowLocal(key string, limit int, window time.Duration) Result {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok || now.Sub(w.startAt) >= window {
		l.windows[key] = &localWindow{count: 1, startAt: now}
		return Result{Allowed: true, Limit: limit, Remaining: limit - 1, ResetAfter: window}
	}

	w.count++
	remaining := limit - w.count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    w.count <= limit,
		Limit:      limit,
		Remaining:  remaining,
		ResetAfter: w.startAt.Add(window).Sub(now),
	}
}
