// Package ratelimit provides the per-token rate limiting consulted during bot
// token verification. The Limiter interface is injected into the vault service
// so deployments can choose between the in-process fixed-window default and a
// Redis-backed limiter whose atomic increments hold across worker processes.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Defaults: 60 requests per 60-second fixed window, keyed by token hash.
const (
	DefaultLimit  = 60
	DefaultWindow = time.Minute
)

// Result is the outcome of one Allow call. RetryAfter is only meaningful when
// Allowed is false; it is the time remaining in the caller's current window.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// window tracks one key's fixed window.
type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is the default single-process limiter: a fixed window per key
// that resets DefaultWindow after the first request in the window. State is
// process-local; multi-process deployments should use RedisLimiter instead.
type MemoryLimiter struct {
	limit  int
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window
	stopCh  chan struct{}

	// now is stubbed in tests to cross window boundaries without sleeping.
	now func() time.Time
}

// NewMemoryLimiter creates an in-memory fixed-window limiter and starts its
// cleanup goroutine. Call Stop when the limiter is no longer needed.
func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if period <= 0 {
		period = DefaultWindow
	}
	ml := &MemoryLimiter{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		stopCh:  make(chan struct{}),
		now:     time.Now,
	}
	go ml.cleanup()
	return ml
}

// Allow increments the key's window counter under the limiter mutex, so
// concurrent requests bearing the same token never both observe the last
// remaining slot.
func (ml *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	ml.mu.Lock()
	defer ml.mu.Unlock()

	now := ml.now()
	w, ok := ml.windows[key]
	if !ok || !now.Before(w.resetAt) {
		ml.windows[key] = &window{count: 1, resetAt: now.Add(ml.period)}
		return Result{Allowed: true}, nil
	}

	if w.count >= ml.limit {
		retry := w.resetAt.Sub(now)
		if retry < time.Second {
			retry = time.Second
		}
		return Result{Allowed: false, RetryAfter: retry}, nil
	}

	w.count++
	return Result{Allowed: true}, nil
}

// Stop terminates the cleanup goroutine.
func (ml *MemoryLimiter) Stop() {
	close(ml.stopCh)
}

// cleanup periodically drops windows that have long since reset, bounding
// memory when many distinct tokens come and go.
func (ml *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ml.mu.Lock()
			now := ml.now()
			for key, w := range ml.windows {
				if now.Sub(w.resetAt) > ml.period {
					delete(ml.windows, key)
				}
			}
			ml.mu.Unlock()
		case <-ml.stopCh:
			return
		}
	}
}
