package store

import (
	"context"
	"sync"

	"stagevote/internal/ledger"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// InMemoryStore holds the ledger in process. The uniqueness index and the
// append run under one lock, making the duplicate-check-plus-append atomic
// per tuple exactly as the PostgreSQL unique constraint does.
type InMemoryStore struct {
	mu    sync.RWMutex
	votes []ledger.Vote
	index map[tupleKey]struct{}
}

type tupleKey struct {
	competition domain.CompetitionID
	participant domain.ParticipantID
	voter       domain.VoterID
	kind        ledger.Kind
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{index: make(map[tupleKey]struct{})}
}

func (s *InMemoryStore) Append(_ context.Context, v ledger.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := tupleKey{competition: v.CompetitionID, participant: v.ParticipantID, voter: v.VoterID, kind: v.Kind}
	if _, exists := s.index[key]; exists {
		return sentinel.ErrConflict
	}
	s.index[key] = struct{}{}
	s.votes = append(s.votes, v)
	return nil
}

func (s *InMemoryStore) Count(_ context.Context, competitionID domain.CompetitionID, participantID domain.ParticipantID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, v := range s.votes {
		if v.CompetitionID != competitionID || v.ParticipantID != participantID {
			continue
		}
		count += delta(v.Kind)
	}
	return count, nil
}

func (s *InMemoryStore) CountAll(_ context.Context, competitionID domain.CompetitionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, v := range s.votes {
		if v.CompetitionID == competitionID {
			count += delta(v.Kind)
		}
	}
	return count, nil
}

func (s *InMemoryStore) Counts(_ context.Context, competitionID domain.CompetitionID) (map[domain.ParticipantID]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.ParticipantID]int)
	for _, v := range s.votes {
		if v.CompetitionID == competitionID {
			counts[v.ParticipantID] += delta(v.Kind)
		}
	}
	return counts, nil
}

func (s *InMemoryStore) HasCast(_ context.Context, competitionID domain.CompetitionID, participantID domain.ParticipantID, voterID domain.VoterID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[tupleKey{competition: competitionID, participant: participantID, voter: voterID, kind: ledger.KindCast}]
	return ok, nil
}

func (s *InMemoryStore) CountCastsByVoter(_ context.Context, competitionID domain.CompetitionID, voterID domain.VoterID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, v := range s.votes {
		if v.CompetitionID == competitionID && v.VoterID == voterID && v.Kind == ledger.KindCast {
			count++
		}
	}
	return count, nil
}

func delta(k ledger.Kind) int {
	if k == ledger.KindRetraction {
		return -1
	}
	return 1
}
