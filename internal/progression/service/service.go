// Package service implements finalize: drain in-flight votes, snapshot the
// standings, advance winners, and seal the competition.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stagevote/internal/competition"
	"stagevote/internal/events"
	"stagevote/internal/leaderboard"
	"stagevote/internal/ledger"
	"stagevote/internal/participant"
	"stagevote/internal/progression"
	"stagevote/internal/progression/metrics"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
	"stagevote/pkg/requestcontext"
)

// Snapshotter provides a fresh standings projection, never a cached one.
type Snapshotter interface {
	Snapshot(ctx context.Context, competitionID domain.CompetitionID) (leaderboard.Board, error)
}

// Emitter dispatches engine events after the durable writes.
type Emitter interface {
	Emit(ctx context.Context, e events.Event)
}

// DefaultDrainTimeout bounds the wait for in-flight votes to settle.
const DefaultDrainTimeout = 5 * time.Second

// Service finalizes competitions.
//
// Concurrency control is layered. A per-competition mutex serializes finalize
// within the process; the status compare-and-swap in the competition store
// serializes across processes; and the advancement unique constraint makes a
// replayed winner write collapse into a conflict. Any one layer failing open
// still cannot double-advance.
type Service struct {
	competitions competition.Store
	participants participant.Store
	advancements progression.Store
	standings    Snapshotter
	tracker      *ledger.Tracker
	emitter      Emitter
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer

	drainTimeout time.Duration

	mu    sync.Mutex
	locks map[domain.CompetitionID]*sync.Mutex
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithDrainTimeout overrides the in-flight drain deadline.
func WithDrainTimeout(d time.Duration) Option {
	return func(s *Service) { s.drainTimeout = d }
}

func New(
	competitions competition.Store,
	participants participant.Store,
	advancements progression.Store,
	standings Snapshotter,
	tracker *ledger.Tracker,
	emitter Emitter,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if competitions == nil {
		return nil, fmt.Errorf("competition store is required")
	}
	if participants == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	if advancements == nil {
		return nil, fmt.Errorf("advancement store is required")
	}
	if standings == nil {
		return nil, fmt.Errorf("standings snapshotter is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("in-flight tracker is required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter is required")
	}

	svc := &Service{
		competitions: competitions,
		participants: participants,
		advancements: advancements,
		standings:    standings,
		tracker:      tracker,
		emitter:      emitter,
		logger:       logger,
		tracer:       otel.Tracer("stagevote/progression"),
		drainTimeout: DefaultDrainTimeout,
		locks:        make(map[domain.CompetitionID]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

func (s *Service) lockFor(id domain.CompetitionID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// Finalize seals a voting-closed competition: waits for in-flight votes to
// drain, snapshots the standings, records the top-quota winners as approved
// participants of the destination competition, and transitions the status to
// finalized.
//
// Finalize is idempotent: calling it on an already finalized competition
// returns the recorded result without repeating any work. A drain timeout
// leaves the competition voting_closed and returns a retryable error.
func (s *Service) Finalize(ctx context.Context, competitionID domain.CompetitionID) (progression.Result, error) {
	lock := s.lockFor(competitionID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := s.tracer.Start(ctx, "competition.finalize",
		trace.WithAttributes(attribute.String("competition_id", competitionID.String())))
	defer span.End()

	start := time.Now()
	result, err := s.finalize(ctx, competitionID)
	s.metrics.ObserveFinalizeLatency(time.Since(start))
	switch {
	case err != nil:
		if dErrors.HasCode(err, dErrors.CodeUnavailable) {
			s.metrics.IncFinalize("drain_timeout")
		} else {
			s.metrics.IncFinalize("error")
		}
	case result.AlreadyFinalized:
		s.metrics.IncFinalize("already_finalized")
	default:
		s.metrics.IncFinalize("finalized")
		s.metrics.AddAdvancements(len(result.Winners))
	}
	return result, err
}

func (s *Service) finalize(ctx context.Context, competitionID domain.CompetitionID) (progression.Result, error) {
	comp, err := s.competitions.FindByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return progression.Result{}, dErrors.New(dErrors.CodeNotFound, "competition not found")
		}
		return progression.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition lookup failed")
	}

	if comp.Status == competition.StatusFinalized {
		return s.recordedResult(ctx, comp)
	}
	if comp.Status != competition.StatusVotingClosed {
		return progression.Result{}, dErrors.New(dErrors.CodeInvalidState,
			"competition must be voting_closed to finalize, is "+string(comp.Status))
	}

	// Every submission that began before voting closed must resolve before
	// the snapshot, or a late accept would be invisible to the winner set.
	if err := s.tracker.AwaitDrain(ctx, competitionID, s.drainTimeout); err != nil {
		if errors.Is(err, ledger.ErrDrainTimeout) {
			return progression.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable,
				"in-flight votes did not settle, retry finalize")
		}
		return progression.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "drain interrupted")
	}

	board, err := s.standings.Snapshot(ctx, competitionID)
	if err != nil {
		return progression.Result{}, err
	}

	now := requestcontext.Now(ctx)
	result := progression.Result{CompetitionID: competitionID, FinalizedAt: now}

	rule := comp.Tier.Rule()
	quota := comp.AdvancementQuota
	if quota > len(board.Entries) {
		quota = len(board.Entries)
	}

	var eventWinners []domain.ParticipantID
	if rule.Next != "" && quota > 0 {
		dest, err := s.resolveDestination(ctx, comp, rule, now)
		if err != nil {
			return progression.Result{}, err
		}
		result.DestinationID = &dest.ID

		for i, entry := range board.Entries[:quota] {
			adv, err := s.advance(ctx, comp, dest, entry, i, now)
			if err != nil {
				return progression.Result{}, err
			}
			result.Winners = append(result.Winners, adv)
			eventWinners = append(eventWinners, entry.ParticipantID)
		}
	} else if rule.Next == "" && len(board.Entries) > 0 {
		// Terminal tier: no advancement, the top entry is the overall winner.
		eventWinners = append(eventWinners, board.Entries[0].ParticipantID)
	}

	if err := s.competitions.TransitionStatus(ctx, competitionID,
		competition.StatusVotingClosed, competition.StatusFinalized); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			// Another process finalized between our read and the swap. The
			// advancements we wrote are the same set it wrote, conflicts
			// collapsed them; report its result.
			fresh, ferr := s.competitions.FindByID(ctx, competitionID)
			if ferr == nil && fresh.Status == competition.StatusFinalized {
				return s.recordedResult(ctx, fresh)
			}
		}
		return progression.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "status transition failed")
	}

	for _, adv := range result.Winners {
		s.emitter.Emit(ctx, events.ParticipantAdvanced(
			adv.ParticipantID, adv.SourceCompetitionID, adv.DestinationCompetitionID, now))
	}
	s.emitter.Emit(ctx, events.CompetitionFinalized(competitionID, eventWinners, now))

	s.logger.InfoContext(ctx, "competition finalized",
		"competition_id", competitionID.String(),
		"winners", len(result.Winners),
	)
	return result, nil
}

// recordedResult reconstructs the outcome of a finalize that already
// happened, from the advancement records.
func (s *Service) recordedResult(ctx context.Context, comp competition.Competition) (progression.Result, error) {
	winners, err := s.advancements.ListBySource(ctx, comp.ID)
	if err != nil {
		return progression.Result{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "advancement list failed")
	}
	result := progression.Result{
		CompetitionID:    comp.ID,
		AlreadyFinalized: true,
		Winners:          winners,
	}
	if len(winners) > 0 {
		result.DestinationID = &winners[0].DestinationCompetitionID
		result.FinalizedAt = winners[0].AdvancedAt
	}
	return result, nil
}

// resolveDestination finds or creates the competition winners advance into.
// Priority: the explicit parent link, then an existing open competition at
// the next tier, then a lazily created one.
func (s *Service) resolveDestination(ctx context.Context, comp competition.Competition, rule competition.TierRule, now time.Time) (competition.Competition, error) {
	if comp.ParentID != nil {
		dest, err := s.competitions.FindByID(ctx, *comp.ParentID)
		if err != nil {
			return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "parent competition lookup failed")
		}
		if dest.Status == competition.StatusFinalized {
			return competition.Competition{}, dErrors.New(dErrors.CodeInvalidState, "destination competition is already finalized")
		}
		return dest, nil
	}

	country := comp.Country
	if rule.AggregateCountries || !rule.Next.Rule().CountryScoped {
		country = ""
	}

	dest, err := s.competitions.FindDestination(ctx, rule.Next, country)
	switch {
	case err == nil:
		// Existing destination; link up so siblings converge on it.
	case errors.Is(err, sentinel.ErrNotFound):
		dest, err = s.createDestination(ctx, comp, rule, country, now)
		if err != nil {
			return competition.Competition{}, err
		}
	default:
		return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "destination lookup failed")
	}

	if err := s.competitions.SetParent(ctx, comp.ID, dest.ID); err != nil {
		return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "parent link failed")
	}
	return dest, nil
}

func (s *Service) createDestination(ctx context.Context, comp competition.Competition, rule competition.TierRule, country string, now time.Time) (competition.Competition, error) {
	name := string(rule.Next) + " finals"
	if country != "" {
		name += " " + country
	}

	quota := comp.AdvancementQuota
	if rule.Next.Rule().Next == "" {
		quota = 0
	}

	dest := competition.Competition{
		ID:      domain.NewCompetitionID(),
		Name:    name,
		Tier:    rule.Next,
		Country: country,
		Status:  competition.StatusOpenForParticipants,
		// Placeholder window; organizers adjust it before voting opens.
		Window: competition.VotingWindow{
			Start: now.Add(7 * 24 * time.Hour),
			End:   now.Add(14 * 24 * time.Hour),
		},
		AdvancementQuota: quota,
		CreatedAt:        now,
	}
	if err := dest.Validate(); err != nil {
		return competition.Competition{}, err
	}
	if err := s.competitions.Save(ctx, dest); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a create race; the sibling's destination is ours too.
			existing, ferr := s.competitions.FindDestination(ctx, rule.Next, country)
			if ferr == nil {
				return existing, nil
			}
		}
		return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "destination create failed")
	}

	s.logger.InfoContext(ctx, "destination competition created",
		"competition_id", dest.ID.String(),
		"tier", string(dest.Tier),
		"country", dest.Country,
	)
	return dest, nil
}

// advance records one winner: a fresh approved participant in the destination
// plus the advancement row linking the two.
func (s *Service) advance(ctx context.Context, comp, dest competition.Competition, entry leaderboard.Entry, position int, now time.Time) (progression.Advancement, error) {
	destParticipant := participant.Participant{
		ID:            domain.NewParticipantID(),
		CompetitionID: dest.ID,
		UserID:        entry.UserID,
		Country:       entry.Country,
		Status:        participant.StatusApproved,
		// Staggered so the destination tie-break preserves source order.
		AppliedAt: now.Add(time.Duration(position) * time.Millisecond),
	}
	if err := s.participants.Save(ctx, destParticipant); err != nil {
		if !errors.Is(err, sentinel.ErrConflict) {
			return progression.Advancement{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "destination participant create failed")
		}
		existing, ferr := s.participants.FindByCompetitionAndUser(ctx, dest.ID, entry.UserID)
		if ferr != nil {
			return progression.Advancement{}, dErrors.Wrap(ferr, dErrors.CodeUnavailable, "destination participant lookup failed")
		}
		destParticipant = existing
	}

	adv := progression.Advancement{
		ID:                       domain.NewAdvancementID(),
		SourceCompetitionID:      comp.ID,
		DestinationCompetitionID: dest.ID,
		ParticipantID:            entry.ParticipantID,
		DestinationParticipantID: destParticipant.ID,
		Rank:                     position + 1,
		VoteCount:                entry.VoteCount,
		AdvancedAt:               now,
	}
	if err := s.advancements.Save(ctx, adv); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A prior partial finalize already recorded this winner.
			recorded, ferr := s.advancements.ListBySource(ctx, comp.ID)
			if ferr == nil {
				for _, r := range recorded {
					if r.ParticipantID == entry.ParticipantID {
						return r, nil
					}
				}
			}
			return adv, nil
		}
		return progression.Advancement{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "advancement save failed")
	}
	return adv, nil
}
