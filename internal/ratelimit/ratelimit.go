// Package ratelimit implements fixed-window request counting per key.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes the state of a key's window after a hit.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// RetryAfter returns how long until the window resets, rounded up to a second.
func (r Result) RetryAfter(now time.Time) time.Duration {
	d := r.Reset.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

// Limiter counts hits per key within a fixed window. Allow records a hit,
// Peek reports whether one more hit would be allowed without recording it.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
	Peek(ctx context.Context, key string) (Result, error)
}

type window struct {
	count int
	start time.Time
}

// Memory is an in-process Limiter.
type Memory struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	sweep   time.Time
}

// NewMemory returns a Limiter allowing limit hits per key every period.
func NewMemory(limit int, period time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (m *Memory) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.sweep) > m.period {
		for k, w := range m.windows {
			if now.Sub(w.start) >= m.period {
				delete(m.windows, k)
			}
		}
		m.sweep = now
	}

	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.period {
		w = &window{start: now}
		m.windows[key] = w
	}
	w.count++

	return result(m.limit, w.count, w.start.Add(m.period)), nil
}

func (m *Memory) Peek(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.period {
		return peekResult(m.limit, 0, now.Add(m.period)), nil
	}
	return peekResult(m.limit, w.count, w.start.Add(m.period)), nil
}

// Redis shares counters between instances.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	period time.Duration
}

// NewRedis returns a Limiter storing counters under prefix.
func NewRedis(client *redis.Client, prefix string, limit int, period time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: limit, period: period}
}

func (r *Redis) Allow(ctx context.Context, key string) (Result, error) {
	k := r.prefix + key

	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("incrementing rate counter: %w", err)
	}
	if count == 1 {
		if err := r.client.PExpire(ctx, k, r.period).Err(); err != nil {
			return Result{}, fmt.Errorf("setting rate window: %w", err)
		}
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("reading rate window: %w", err)
	}
	if ttl < 0 {
		// Key lost its expiry; start a new window.
		r.client.PExpire(ctx, k, r.period)
		ttl = r.period
	}

	return result(r.limit, int(count), time.Now().Add(ttl)), nil
}

func (r *Redis) Peek(ctx context.Context, key string) (Result, error) {
	k := r.prefix + key

	count, err := r.client.Get(ctx, k).Int()
	if errors.Is(err, redis.Nil) {
		return peekResult(r.limit, 0, time.Now().Add(r.period)), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("reading rate counter: %w", err)
	}

	ttl, err := r.client.PTTL(ctx, k).Result()
	if err != nil {
		return Result{}, fmt.Errorf("reading rate window: %w", err)
	}
	if ttl < 0 {
		ttl = r.period
	}
	return peekResult(r.limit, count, time.Now().Add(ttl)), nil
}

// peekResult is the state of a window holding count hits, where the next hit
// is allowed only while count is below limit.
func peekResult(limit, count int, reset time.Time) Result {
	res := result(limit, count, reset)
	res.Allowed = count < limit
	return res
}

func result(limit, count int, reset time.Time) Result {
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   count <= limit,
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}
}
