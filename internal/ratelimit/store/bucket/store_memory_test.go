package bucket

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

const (
	testLimit  = 5
	testWindow = time.Minute
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	clock time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(WithClock(func() time.Time { return s.clock }))
}

func (s *InMemoryStoreSuite) TestAllow() {
	s.Run("first action allowed", func() {
		result, err := s.store.Allow(s.ctx, "voter:first", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit-1, result.Remaining)
	})

	s.Run("K actions allowed, K+1th denied", func() {
		for range testLimit {
			result, err := s.store.Allow(s.ctx, "voter:burst", testLimit, testWindow)
			s.Require().NoError(err)
			s.True(result.Allowed)
		}
		result, err := s.store.Allow(s.ctx, "voter:burst", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Zero(result.Remaining)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, err := s.store.Allow(s.ctx, "voter:full", testLimit, testWindow)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.ctx, "voter:other", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryStoreSuite) TestWindowSlides() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "voter:slide", testLimit, testWindow)
		s.Require().NoError(err)
	}

	s.Run("still denied just inside the window", func() {
		s.clock = s.clock.Add(testWindow - time.Second)
		result, err := s.store.Allow(s.ctx, "voter:slide", testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
	})

	s.Run("allowed once the window passes", func() {
		s.clock = s.clock.Add(2 * time.Second)
		result, err := s.store.Allow(s.ctx, "voter:slide", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryStoreSuite) TestReset() {
	for range testLimit {
		_, err := s.store.Allow(s.ctx, "voter:reset", testLimit, testWindow)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.store.Reset(s.ctx, "voter:reset"))

	result, err := s.store.Allow(s.ctx, "voter:reset", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

// TestConcurrentExactness verifies the counter neither over- nor undercounts
// under a concurrent burst: exactly `limit` of the attempts are admitted.
func (s *InMemoryStoreSuite) TestConcurrentExactness() {
	store := NewInMemoryStore()
	const attempts = 40

	var admitted atomic.Int32
	var wg sync.WaitGroup
	for range attempts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := store.Allow(context.Background(), "voter:swarm", testLimit, testWindow)
			if err == nil && result.Allowed {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(testLimit), admitted.Load())
}
