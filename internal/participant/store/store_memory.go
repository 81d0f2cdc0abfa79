package store

import (
	"context"
	"sort"
	"sync"

	"stagevote/internal/participant"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
)

// InMemoryStore keeps participants keyed by ID plus a (competition, user)
// uniqueness index, mirroring the composite unique constraint the PostgreSQL
// store enforces.
type InMemoryStore struct {
	mu           sync.RWMutex
	participants map[domain.ParticipantID]participant.Participant
	byCompUser   map[compUserKey]domain.ParticipantID
}

type compUserKey struct {
	competition domain.CompetitionID
	user        domain.UserID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		participants: make(map[domain.ParticipantID]participant.Participant),
		byCompUser:   make(map[compUserKey]domain.ParticipantID),
	}
}

func (s *InMemoryStore) Save(_ context.Context, p participant.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := compUserKey{competition: p.CompetitionID, user: p.UserID}
	if _, exists := s.byCompUser[key]; exists {
		return sentinel.ErrConflict
	}
	if _, exists := s.participants[p.ID]; exists {
		return sentinel.ErrConflict
	}
	s.participants[p.ID] = p
	s.byCompUser[key] = p.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ParticipantID) (participant.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return participant.Participant{}, sentinel.ErrNotFound
	}
	return p, nil
}

func (s *InMemoryStore) FindByCompetitionAndUser(_ context.Context, competitionID domain.CompetitionID, userID domain.UserID) (participant.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCompUser[compUserKey{competition: competitionID, user: userID}]
	if !ok {
		return participant.Participant{}, sentinel.ErrNotFound
	}
	return s.participants[id], nil
}

func (s *InMemoryStore) ListByCompetition(_ context.Context, competitionID domain.CompetitionID) ([]participant.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []participant.Participant
	for _, p := range s.participants {
		if p.CompetitionID == competitionID {
			out = append(out, p)
		}
	}
	// Earliest applicant first; ID as a stable secondary key for identical
	// timestamps.
	sort.Slice(out, func(i, j int) bool {
		if out[i].AppliedAt.Equal(out[j].AppliedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].AppliedAt.Before(out[j].AppliedAt)
	})
	return out, nil
}

func (s *InMemoryStore) CountApproved(_ context.Context, competitionID domain.CompetitionID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, p := range s.participants {
		if p.CompetitionID == competitionID && p.Status == participant.StatusApproved {
			count++
		}
	}
	return count, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, id domain.ParticipantID, status participant.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.participants[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Status = status
	s.participants[id] = p
	return nil
}
