// Package ratelimit: sliding-window limiter over a shared counter store.
//
// The limiter counts events per (category, identity) key inside a trailing
// window using a Redis sorted set: old members are trimmed by score, the new
// event is added, and the cardinality after the trim is the in-window count.
// Because the set lives in Redis, concurrent stateless instances share window
// state correctly; nothing is counted client-side.
package ratelimit

import (
	"context"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result is the outcome of one limiter check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAfter time.Duration // time until the oldest in-window event expires
}

// CounterStore is the atomic, shared counter backend. Implementations must be
// safe for concurrent use across goroutines and across process instances.
type CounterStore interface {
	// Take records one event under key and returns the number of events in
	// the trailing window (including this one) and the time until the oldest
	// of them leaves the window.
	Take(ctx context.Context, key string, window time.Duration) (count int64, resetAfter time.Duration, err error)

	// Incr is the fixed-window primitive used by the simple limiter: it
	// increments key, sets the expiry on first touch, and returns the count
	// and remaining window.
	Incr(ctx context.Context, key string, window time.Duration) (count int64, resetAfter time.Duration, err error)
}

// RedisStore implements CounterStore over go-redis.
type RedisStore struct {
	rdb *redis.Client
	seq atomic.Uint64 // disambiguates same-nanosecond members
}

// NewRedisStore wraps an existing client. The caller owns the client's
// lifecycle; construct it once at process start and share it.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Take trims, adds, counts, and peeks the oldest member in one pipeline.
func (s *RedisStore) Take(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	now := time.Now()
	cutoff := now.Add(-window).UnixNano()
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatUint(s.seq.Add(1), 10)

	pipe := s.rdb.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(cutoff, 10))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	card := pipe.ZCard(ctx, key)
	oldest := pipe.ZRangeWithScores(ctx, key, 0, 0)
	pipe.PExpire(ctx, key, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := card.Val()
	resetAfter := window
	if zs := oldest.Val(); len(zs) > 0 {
		oldestAt := time.Unix(0, int64(zs[0].Score))
		if d := oldestAt.Add(window).Sub(now); d > 0 {
			resetAfter = d
		}
	}
	return count, resetAfter, nil
}

// Incr is a plain fixed-window INCR with expiry set on the first event.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	pipe := s.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}

	count := incr.Val()
	resetAfter := ttl.Val()
	if count == 1 || resetAfter < 0 {
		// First event in the window (or a key that lost its TTL).
		if err := s.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return count, window, err
		}
		resetAfter = window
	}
	return count, resetAfter, nil
}

// Limiter checks sliding-window budgets for (category, identity) pairs
// against a CounterStore, namespaced by a layer prefix so that independent
// enforcement points never share window state.
//
// A nil store means the counter backend is unconfigured: every check returns
// Allowed. Store errors likewise fail open after the per-call timeout.
type Limiter struct {
	store   CounterStore
	layer   string        // key namespace, e.g. "edge" or "route"
	timeout time.Duration // per-call budget before failing open
}

// NewLimiter builds a limiter for one enforcement layer. Distinct layers MUST
// use distinct names: sharing a namespace between the edge and route gates
// would double-count every request and halve the effective limit.
func NewLimiter(store CounterStore, layer string, timeout time.Duration) *Limiter {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Limiter{store: store, layer: layer, timeout: timeout}
}

// Check records one event for (category, identity) and reports the decision.
// Unconfigured or failing stores always produce Allowed with a full budget.
func (l *Limiter) Check(ctx context.Context, cat Category, identity string) Result {
	open := Result{Allowed: true, Limit: cat.Limit, Remaining: cat.Limit, ResetAfter: 0}
	if l.store == nil {
		return open
	}

	cctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := "rl:" + l.layer + ":" + cat.Name + ":" + identity
	count, resetAfter, err := l.store.Take(cctx, key, cat.Window)
	if err != nil {
		return open
	}

	remaining := cat.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:    count <= int64(cat.Limit),
		Limit:      cat.Limit,
		Remaining:  remaining,
		ResetAfter: resetAfter,
	}
}
