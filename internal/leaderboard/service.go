package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"stagevote/internal/leaderboard/metrics"
	"stagevote/internal/participant"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/requestcontext"
)

// ParticipantLister is the slice of the participant store the projection
// needs. The returned order (applied_at, then id) is the tie-break order.
type ParticipantLister interface {
	ListByCompetition(ctx context.Context, competitionID domain.CompetitionID) ([]participant.Participant, error)
}

// VoteCounter is the slice of the vote ledger the projection needs.
type VoteCounter interface {
	Counts(ctx context.Context, competitionID domain.CompetitionID) (map[domain.ParticipantID]int, error)
}

// Service computes ranked standings from the ledger and the roster.
type Service struct {
	participants ParticipantLister
	votes        VoteCounter
	cache        Cache
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// Option configures the Service.
type Option func(*Service)

// WithCache enables cache-aside reads for full boards.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(participants ParticipantLister, votes VoteCounter, logger *slog.Logger, opts ...Option) (*Service, error) {
	if participants == nil {
		return nil, fmt.Errorf("participant lister is required")
	}
	if votes == nil {
		return nil, fmt.Errorf("vote counter is required")
	}
	svc := &Service{
		participants: participants,
		votes:        votes,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Rank returns the standings for a competition, optionally filtered by
// country and paged. Cache errors degrade to a fresh projection, never to a
// failed read.
func (s *Service) Rank(ctx context.Context, competitionID domain.CompetitionID, q Query) (Board, error) {
	if q.Limit < 0 || q.Offset < 0 {
		return Board{}, dErrors.New(dErrors.CodeInvalidInput, "limit and offset cannot be negative")
	}

	board, err := s.cachedBoard(ctx, competitionID)
	if err != nil {
		return Board{}, err
	}
	return narrow(board, q), nil
}

// Snapshot computes a fresh, full board straight from the ledger, bypassing
// the cache. Finalize consumes this so advancement never acts on a stale
// projection.
func (s *Service) Snapshot(ctx context.Context, competitionID domain.CompetitionID) (Board, error) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, competitionID); err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache invalidate failed",
				"competition_id", competitionID.String(), "error", err)
		}
	}
	return s.build(ctx, competitionID)
}

func (s *Service) cachedBoard(ctx context.Context, competitionID domain.CompetitionID) (Board, error) {
	if s.cache != nil {
		board, ok, err := s.cache.Get(ctx, competitionID)
		if err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache get failed",
				"competition_id", competitionID.String(), "error", err)
		} else if ok {
			s.metrics.IncCacheHit()
			return board, nil
		}
		s.metrics.IncCacheMiss()
	}

	board, err := s.build(ctx, competitionID)
	if err != nil {
		return Board{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, competitionID, board); err != nil {
			s.logger.WarnContext(ctx, "leaderboard cache set failed",
				"competition_id", competitionID.String(), "error", err)
		}
	}
	return board, nil
}

func (s *Service) build(ctx context.Context, competitionID domain.CompetitionID) (Board, error) {
	start := time.Now()
	defer func() {
		s.metrics.IncBoardBuilds()
		s.metrics.ObserveBuildLatency(time.Since(start))
	}()

	roster, err := s.participants.ListByCompetition(ctx, competitionID)
	if err != nil {
		return Board{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "participant list failed")
	}
	counts, err := s.votes.Counts(ctx, competitionID)
	if err != nil {
		return Board{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "vote counts failed")
	}

	entries := make([]Entry, 0, len(roster))
	total := 0
	for _, p := range roster {
		if !p.Eligible() {
			continue
		}
		n := counts[p.ID]
		total += n
		entries = append(entries, Entry{
			ParticipantID: p.ID,
			UserID:        p.UserID,
			Country:       p.Country,
			VoteCount:     n,
			AppliedAt:     p.AppliedAt,
		})
	}

	// Order by votes, then earliest application, then ID string. The final
	// key makes the order total so two runs over the same ledger always
	// produce the same board.
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].VoteCount != entries[j].VoteCount {
			return entries[i].VoteCount > entries[j].VoteCount
		}
		if !entries[i].AppliedAt.Equal(entries[j].AppliedAt) {
			return entries[i].AppliedAt.Before(entries[j].AppliedAt)
		}
		return entries[i].ParticipantID.String() < entries[j].ParticipantID.String()
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}

	return Board{
		CompetitionID: competitionID,
		GeneratedAt:   requestcontext.Now(ctx),
		TotalVotes:    total,
		Entries:       entries,
	}, nil
}

// narrow applies the country filter and paging to a full board. Ranks keep
// their board-wide values so a filtered view still shows true positions.
func narrow(board Board, q Query) Board {
	entries := board.Entries
	if q.Country != "" {
		filtered := make([]Entry, 0, len(entries))
		for _, e := range entries {
			if e.Country == q.Country {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	if q.Offset >= len(entries) {
		entries = nil
	} else {
		entries = entries[q.Offset:]
	}

	limit := q.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	board.Entries = entries
	return board
}
