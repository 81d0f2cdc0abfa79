package bucket

import (
	"context"
	"sync"
	"time"

	"stagevote/internal/ratelimit"
)

// InMemoryStore is a sliding-window rate limiter for single-process
// deployments and tests. For shared state across replicas use RedisStore.
type InMemoryStore struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// Option configures the store.
type Option func(*InMemoryStore)

// WithClock overrides the time source. Tests use this to step through
// window boundaries deterministically.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) { s.now = now }
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allow records one action for key if the sliding window has capacity.
// The prune and the append run under one lock, so concurrent bursts observe
// an exact count.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	stamps := prune(s.windows[key], now.Add(-window))

	if len(stamps) >= limit {
		s.windows[key] = stamps
		return &ratelimit.Result{
			Allowed:   false,
			Limit:     limit,
			Remaining: 0,
			ResetAt:   stamps[0].Add(window),
		}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = stamps
	return &ratelimit.Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// Reset clears the counter for a key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// prune drops timestamps at or before the cutoff. Stamps are appended in
// order, so the suffix after the first survivor is the live window.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(stamps); i++ {
		if stamps[i].After(cutoff) {
			break
		}
	}
	return stamps[i:]
}
