package store

import (
	"context"
	"sync"

	"stagevote/internal/competition"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// InMemoryStore keeps competitions in a map guarded by a RWMutex. The
// compare-and-swap in TransitionStatus runs under the write lock, so the
// monotonic status invariant holds under concurrent callers.
type InMemoryStore struct {
	mu           sync.RWMutex
	competitions map[domain.CompetitionID]competition.Competition
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{competitions: make(map[domain.CompetitionID]competition.Competition)}
}

func (s *InMemoryStore) Save(_ context.Context, c competition.Competition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.competitions[c.ID]; exists {
		return sentinel.ErrConflict
	}
	// At most one active advancement destination per (tier, country), matching
	// the partial unique index in the postgres schema. Local competitions are
	// exempt; they are never an advancement destination.
	if c.Tier != competition.TierLocal && c.Status != competition.StatusFinalized {
		for _, other := range s.competitions {
			if other.Tier == c.Tier && other.Country == c.Country && other.Status != competition.StatusFinalized {
				return sentinel.ErrConflict
			}
		}
	}
	s.competitions[c.ID] = c
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.CompetitionID) (competition.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.competitions[id]
	if !ok {
		return competition.Competition{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *InMemoryStore) ListSiblings(_ context.Context, parentID domain.CompetitionID) ([]competition.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []competition.Competition
	for _, c := range s.competitions {
		if c.ParentID != nil && *c.ParentID == parentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListByStatus(_ context.Context, status competition.Status) ([]competition.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []competition.Competition
	for _, c := range s.competitions {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *InMemoryStore) FindDestination(_ context.Context, tier competition.Tier, country string) (competition.Competition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.competitions {
		if c.Tier == tier && c.Country == country && c.Status != competition.StatusFinalized {
			return c, nil
		}
	}
	return competition.Competition{}, sentinel.ErrNotFound
}

func (s *InMemoryStore) TransitionStatus(_ context.Context, id domain.CompetitionID, from, to competition.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != from {
		return sentinel.ErrInvalidState
	}
	c.Status = to
	s.competitions[id] = c
	return nil
}

func (s *InMemoryStore) SetParent(_ context.Context, id, parentID domain.CompetitionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.competitions[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	c.ParentID = &parentID
	s.competitions[id] = c
	return nil
}
