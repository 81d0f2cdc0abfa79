package cache

import (
	"context"
	"sync"
	"time"

	"stagevote/internal/leaderboard"
	"stagevote/pkg/domain"
)

type cachedBoard struct {
	board    leaderboard.Board
	storedAt time.Time
}

// InMemoryCache holds computed boards with TTL expiration. The single-node
// counterpart of the Redis cache.
type InMemoryCache struct {
	mu     sync.RWMutex
	boards map[domain.CompetitionID]cachedBoard
	ttl    time.Duration
	now    func() time.Time
}

// Option configures the InMemoryCache.
type Option func(*InMemoryCache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *InMemoryCache) { c.now = now }
}

// NewInMemoryCache creates an in-memory board cache with the given TTL.
func NewInMemoryCache(ttl time.Duration, opts ...Option) *InMemoryCache {
	c := &InMemoryCache{
		boards: make(map[domain.CompetitionID]cachedBoard),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *InMemoryCache) Get(_ context.Context, competitionID domain.CompetitionID) (leaderboard.Board, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.boards[competitionID]
	if !ok || c.now().Sub(cached.storedAt) >= c.ttl {
		return leaderboard.Board{}, false, nil
	}
	return cached.board, true, nil
}

func (c *InMemoryCache) Set(_ context.Context, competitionID domain.CompetitionID, board leaderboard.Board) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.boards[competitionID] = cachedBoard{board: board, storedAt: c.now()}
	return nil
}

func (c *InMemoryCache) Invalidate(_ context.Context, competitionID domain.CompetitionID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.boards, competitionID)
	return nil
}
