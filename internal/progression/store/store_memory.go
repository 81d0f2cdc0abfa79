package store

import (
	"context"
	"sort"
	"sync"

	"stagevote/internal/progression"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

type sourceParticipantKey struct {
	sourceID      domain.CompetitionID
	participantID domain.ParticipantID
}

// InMemoryStore keeps advancements in memory for tests and local runs.
type InMemoryStore struct {
	mu           sync.RWMutex
	advancements []progression.Advancement
	byPair       map[sourceParticipantKey]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		byPair: make(map[sourceParticipantKey]struct{}),
	}
}

func (s *InMemoryStore) Save(_ context.Context, a progression.Advancement) error {
	key := sourceParticipantKey{sourceID: a.SourceCompetitionID, participantID: a.ParticipantID}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byPair[key]; exists {
		return sentinel.ErrConflict
	}
	s.byPair[key] = struct{}{}
	s.advancements = append(s.advancements, a)
	return nil
}

func (s *InMemoryStore) ListBySource(_ context.Context, sourceID domain.CompetitionID) ([]progression.Advancement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a progression.Advancement) bool {
		return a.SourceCompetitionID == sourceID
	}), nil
}

func (s *InMemoryStore) ListByDestination(_ context.Context, destinationID domain.CompetitionID) ([]progression.Advancement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter(func(a progression.Advancement) bool {
		return a.DestinationCompetitionID == destinationID
	}), nil
}

func (s *InMemoryStore) filter(keep func(progression.Advancement) bool) []progression.Advancement {
	var out []progression.Advancement
	for _, a := range s.advancements {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}
