// Package service implements the admission pipeline: ordered checks,
// atomic duplicate-check-plus-append, and emit-after-commit events.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"stagevote/internal/competition"
	"stagevote/internal/events"
	"stagevote/internal/fraudguard"
	"stagevote/internal/fraudguard/metrics"
	"stagevote/internal/ledger"
	"stagevote/internal/participant"
	"stagevote/internal/ratelimit"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
	"stagevote/pkg/requestcontext"
)

// CompetitionReader is the slice of the competition store admission needs.
type CompetitionReader interface {
	FindByID(ctx context.Context, id domain.CompetitionID) (competition.Competition, error)
}

// ParticipantReader is the slice of the participant store admission needs.
type ParticipantReader interface {
	FindByID(ctx context.Context, id domain.ParticipantID) (participant.Participant, error)
}

// Emitter dispatches engine events after the durable write.
type Emitter interface {
	Emit(ctx context.Context, e events.Event)
}

// Policy mirrors the vote-policy configuration switch. The default is one
// accepted vote per participant; SingleVotePerCompetition additionally caps a
// voter at one vote total per competition. Always explicit, never assumed.
type Policy struct {
	SingleVotePerCompetition bool
}

// Service evaluates vote submissions end to end.
type Service struct {
	competitions CompetitionReader
	participants ParticipantReader
	votes        ledger.Store
	tracker      *ledger.Tracker
	limiter      *ratelimit.Limiter
	emitter      Emitter
	policy       Policy
	metrics      *metrics.Metrics
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithPolicy overrides the default vote policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

func New(
	competitions CompetitionReader,
	participants ParticipantReader,
	votes ledger.Store,
	tracker *ledger.Tracker,
	limiter *ratelimit.Limiter,
	emitter Emitter,
	logger *slog.Logger,
	opts ...Option,
) (*Service, error) {
	if competitions == nil {
		return nil, fmt.Errorf("competition reader is required")
	}
	if participants == nil {
		return nil, fmt.Errorf("participant reader is required")
	}
	if votes == nil {
		return nil, fmt.Errorf("vote ledger is required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("in-flight tracker is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("event emitter is required")
	}

	svc := &Service{
		competitions: competitions,
		participants: participants,
		votes:        votes,
		tracker:      tracker,
		limiter:      limiter,
		emitter:      emitter,
		logger:       logger,
		tracer:       otel.Tracer("stagevote/fraudguard"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Submit runs the admission checks in order, short-circuiting on the first
// failure, and appends the vote when all pass. The submission registers with
// the in-flight tracker before any check so a finalize drain observes it.
//
// A rejection is a normal Decision, not an error. Errors are reserved for
// storage faults and invalid references; the transport maps them to
// retryable responses so an accepted vote is never silently lost.
func (s *Service) Submit(ctx context.Context, req fraudguard.VoteRequest) (fraudguard.Decision, error) {
	done := s.tracker.Begin(req.CompetitionID)
	defer done()

	ctx, span := s.tracer.Start(ctx, "vote.submit",
		trace.WithAttributes(attribute.String("competition_id", req.CompetitionID.String())))
	defer span.End()

	start := time.Now()
	decision, err := s.evaluate(ctx, req)
	s.metrics.ObserveSubmitLatency(time.Since(start))
	if err != nil {
		return fraudguard.Decision{}, err
	}

	now := requestcontext.Now(ctx)
	if decision.Accepted {
		s.metrics.IncAccepted()
		s.emitter.Emit(ctx, events.VoteAccepted(req.CompetitionID, req.ParticipantID, decision.NewCount, now))
	} else {
		s.metrics.IncRejected(string(decision.Reason))
		s.emitter.Emit(ctx, events.VoteRejected(req.CompetitionID, req.ParticipantID, req.VoterID, string(decision.Reason), now))
	}
	return decision, nil
}

func (s *Service) evaluate(ctx context.Context, req fraudguard.VoteRequest) (fraudguard.Decision, error) {
	now := requestcontext.Now(ctx)

	// 1. Voting window and status.
	comp, err := s.competitions.FindByID(ctx, req.CompetitionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fraudguard.Decision{}, dErrors.New(dErrors.CodeNotFound, "competition not found")
		}
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition lookup failed")
	}
	if !comp.VotingOpenAt(now) {
		return fraudguard.Reject(fraudguard.ReasonVotingClosed), nil
	}

	// 2. Voter identity, supplied by the external identity collaborator.
	if !req.VoterVerified {
		return fraudguard.Reject(fraudguard.ReasonUnverifiedVoter), nil
	}

	// 3. Participant exists here and is approved.
	p, err := s.participants.FindByID(ctx, req.ParticipantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fraudguard.Reject(fraudguard.ReasonIneligibleParticipant), nil
		}
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "participant lookup failed")
	}
	if p.CompetitionID != req.CompetitionID || !p.Eligible() {
		return fraudguard.Reject(fraudguard.ReasonIneligibleParticipant), nil
	}

	// 4. Sliding-window rate limits, voter and fingerprint independently.
	limit, err := s.limiter.Check(ctx, req.VoterID.String(), req.Fingerprint)
	if err != nil {
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "rate limit check failed")
	}
	if !limit.Allowed {
		return fraudguard.Reject(fraudguard.ReasonRateLimited), nil
	}

	// 5. Duplicate pre-check, advisory; the append constraint is authoritative.
	if s.policy.SingleVotePerCompetition {
		n, err := s.votes.CountCastsByVoter(ctx, req.CompetitionID, req.VoterID)
		if err != nil {
			return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "voter cast lookup failed")
		}
		if n > 0 {
			return fraudguard.Reject(fraudguard.ReasonDuplicateVote), nil
		}
	}
	dup, err := s.votes.HasCast(ctx, req.CompetitionID, req.ParticipantID, req.VoterID)
	if err != nil {
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "duplicate lookup failed")
	}
	if dup {
		return fraudguard.Reject(fraudguard.ReasonDuplicateVote), nil
	}

	// Append. A conflict here means we lost the race after the pre-check;
	// the ledger's unique constraint makes the pair atomic, and the outcome
	// is the same rejection the pre-check would have produced.
	vote := ledger.Vote{
		ID:            domain.NewVoteID(),
		CompetitionID: req.CompetitionID,
		ParticipantID: req.ParticipantID,
		VoterID:       req.VoterID,
		Fingerprint:   req.Fingerprint,
		Kind:          ledger.KindCast,
		CastAt:        now,
	}
	if err := s.votes.Append(ctx, vote); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fraudguard.Reject(fraudguard.ReasonDuplicateVote), nil
		}
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "vote append failed")
	}

	count, err := s.votes.Count(ctx, req.CompetitionID, req.ParticipantID)
	if err != nil {
		// The vote is durably appended; failing the whole submission now
		// would invite a retry that double-reports. Log and answer without
		// the count.
		s.logger.ErrorContext(ctx, "count after append failed",
			"competition_id", req.CompetitionID.String(),
			"participant_id", req.ParticipantID.String(),
			"error", err,
		)
		return fraudguard.Accept(0), nil
	}
	return fraudguard.Accept(count), nil
}

// Retract appends a withdrawal record superseding the voter's accepted cast.
// The original vote is never mutated; counts subtract the retraction. Only
// permitted while voting is open and only once per cast.
func (s *Service) Retract(ctx context.Context, req fraudguard.VoteRequest) (fraudguard.Decision, error) {
	done := s.tracker.Begin(req.CompetitionID)
	defer done()

	now := requestcontext.Now(ctx)

	comp, err := s.competitions.FindByID(ctx, req.CompetitionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return fraudguard.Decision{}, dErrors.New(dErrors.CodeNotFound, "competition not found")
		}
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition lookup failed")
	}
	if !comp.VotingOpenAt(now) {
		return fraudguard.Reject(fraudguard.ReasonVotingClosed), nil
	}

	hasCast, err := s.votes.HasCast(ctx, req.CompetitionID, req.ParticipantID, req.VoterID)
	if err != nil {
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "cast lookup failed")
	}
	if !hasCast {
		return fraudguard.Decision{}, dErrors.New(dErrors.CodeNotFound, "no accepted vote to retract")
	}

	retraction := ledger.Vote{
		ID:            domain.NewVoteID(),
		CompetitionID: req.CompetitionID,
		ParticipantID: req.ParticipantID,
		VoterID:       req.VoterID,
		Fingerprint:   req.Fingerprint,
		Kind:          ledger.KindRetraction,
		CastAt:        now,
	}
	if err := s.votes.Append(ctx, retraction); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return fraudguard.Decision{}, dErrors.New(dErrors.CodeConflict, "vote already retracted")
		}
		return fraudguard.Decision{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "retraction append failed")
	}

	count, err := s.votes.Count(ctx, req.CompetitionID, req.ParticipantID)
	if err != nil {
		count = 0
	}
	return fraudguard.Accept(count), nil
}
