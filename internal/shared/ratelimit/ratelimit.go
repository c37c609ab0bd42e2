// Package ratelimit provides fixed-window request throttling over a
// swappable counter store. The in-memory store is process-local by
// configuration choice; deployments with multiple replicas should use the
// Redis store so all replicas share one window.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Store is the counter capability a limiter needs: increment a key and
// return the new count, expiring the key when the window elapses.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// Result contains the outcome of a rate limit check.
type Result struct {
	Allowed   bool  `json:"allowed"`
	Remaining int64 `json:"remaining"`
	Limit     int64 `json:"limit"`
	ResetAt   int64 `json:"reset_at"`
}

// Limiter enforces a per-key request limit within a rolling window.
type Limiter struct {
	store  Store
	limit  int64
	window time.Duration
}

// NewLimiter creates a limiter allowing limit events per window per key.
func NewLimiter(store Store, limit int, window time.Duration) *Limiter {
	return &Limiter{
		store:  store,
		limit:  int64(limit),
		window: window,
	}
}

// Allow records one event for key and reports whether it is within the limit.
func (l *Limiter) Allow(ctx context.Context, key string) (*Result, error) {
	count, err := l.store.Incr(ctx, key, l.window)
	if err != nil {
		return nil, err
	}

	remaining := l.limit - count
	if remaining < 0 {
		remaining = 0
	}

	return &Result{
		Allowed:   count <= l.limit,
		Remaining: remaining,
		Limit:     l.limit,
		ResetAt:   time.Now().Add(l.window).Unix(),
	}, nil
}

// memoryStore is a mutex-guarded in-process counter map. Counters reset on
// process restart; acceptable for abuse throttling, not a source of strong
// guarantees.
type memoryStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryStore creates an in-process counter store.
func NewMemoryStore() Store {
	return &memoryStore{buckets: make(map[string]*bucket)}
}

func (s *memoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, error) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || now.After(b.expiresAt) {
		b = &bucket{expiresAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++

	// Opportunistic cleanup of expired buckets.
	if len(s.buckets) > 10000 {
		for k, v := range s.buckets {
			if now.After(v.expiresAt) {
				delete(s.buckets, k)
			}
		}
	}

	return b.count, nil
}
