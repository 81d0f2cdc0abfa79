// Package scheduler sweeps competitions across their window boundaries.
//
// The sweep runs on an interval: competitions whose window has started get
// voting opened, competitions whose window has ended get voting closed and
// finalized. A failure on one competition is logged and retried on the next
// sweep; the sweep never stops the loop.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"stagevote/internal/competition"
	"stagevote/internal/progression"
	"stagevote/pkg/domain"
)

// Lifecycle is the slice of the competition service the sweep drives.
type Lifecycle interface {
	ListByStatus(ctx context.Context, status competition.Status) ([]competition.Competition, error)
	OpenVoting(ctx context.Context, id domain.CompetitionID) error
	CloseVoting(ctx context.Context, id domain.CompetitionID) error
}

// Finalizer seals voting-closed competitions.
type Finalizer interface {
	Finalize(ctx context.Context, id domain.CompetitionID) (progression.Result, error)
}

// DefaultInterval is how often the sweep runs.
const DefaultInterval = 30 * time.Second

// Scheduler owns the background sweep job.
type Scheduler struct {
	lifecycle Lifecycle
	finalizer Finalizer
	interval  time.Duration
	logger    *slog.Logger
	sched     gocron.Scheduler
	now       func() time.Time
}

// Option configures the Scheduler.
type Option func(*Scheduler)

// WithInterval overrides the sweep interval.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) { s.interval = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(lifecycle Lifecycle, finalizer Finalizer, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if lifecycle == nil {
		return nil, fmt.Errorf("competition lifecycle is required")
	}
	if finalizer == nil {
		return nil, fmt.Errorf("finalizer is required")
	}
	s := &Scheduler{
		lifecycle: lifecycle,
		finalizer: finalizer,
		interval:  DefaultInterval,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start registers the sweep job and begins running it.
func (s *Scheduler) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() { s.Sweep(ctx) }),
	); err != nil {
		return fmt.Errorf("register sweep job: %w", err)
	}
	s.sched = sched
	sched.Start()
	s.logger.InfoContext(ctx, "window sweep started", "interval", s.interval.String())
	return nil
}

// Stop shuts the sweep down, waiting for a running sweep to complete.
func (s *Scheduler) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}

// Sweep runs one pass over the window boundaries. Exported so the server can
// run an immediate pass at startup and tests can drive it directly.
func (s *Scheduler) Sweep(ctx context.Context) {
	now := s.now()
	s.openDue(ctx, now)
	s.closeAndFinalizeDue(ctx, now)
	s.retryStuckFinalize(ctx)
}

// openDue opens voting for competitions whose window has started. A
// competition with no approved participants stays put and is retried; the
// organizer sees the gap from the logs.
func (s *Scheduler) openDue(ctx context.Context, now time.Time) {
	due, err := s.lifecycle.ListByStatus(ctx, competition.StatusOpenForParticipants)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep list failed", "status", string(competition.StatusOpenForParticipants), "error", err)
		return
	}
	for _, c := range due {
		if now.Before(c.Window.Start) || !now.Before(c.Window.End) {
			continue
		}
		if err := s.lifecycle.OpenVoting(ctx, c.ID); err != nil {
			s.logger.WarnContext(ctx, "sweep could not open voting",
				"competition_id", c.ID.String(), "error", err)
			continue
		}
		s.logger.InfoContext(ctx, "voting opened by sweep", "competition_id", c.ID.String())
	}
}

// closeAndFinalizeDue closes voting for competitions whose window has ended,
// then finalizes them in the same pass.
func (s *Scheduler) closeAndFinalizeDue(ctx context.Context, now time.Time) {
	due, err := s.lifecycle.ListByStatus(ctx, competition.StatusVotingOpen)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep list failed", "status", string(competition.StatusVotingOpen), "error", err)
		return
	}
	for _, c := range due {
		if now.Before(c.Window.End) {
			continue
		}
		if err := s.lifecycle.CloseVoting(ctx, c.ID); err != nil {
			s.logger.WarnContext(ctx, "sweep could not close voting",
				"competition_id", c.ID.String(), "error", err)
			continue
		}
		s.finalize(ctx, c.ID)
	}
}

// retryStuckFinalize picks up competitions left voting_closed by a crash or
// a drain timeout.
func (s *Scheduler) retryStuckFinalize(ctx context.Context) {
	stuck, err := s.lifecycle.ListByStatus(ctx, competition.StatusVotingClosed)
	if err != nil {
		s.logger.ErrorContext(ctx, "sweep list failed", "status", string(competition.StatusVotingClosed), "error", err)
		return
	}
	for _, c := range stuck {
		s.finalize(ctx, c.ID)
	}
}

func (s *Scheduler) finalize(ctx context.Context, id domain.CompetitionID) {
	if _, err := s.finalizer.Finalize(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "sweep finalize failed, will retry",
			"competition_id", id.String(), "error", err)
		return
	}
	s.logger.InfoContext(ctx, "competition finalized by sweep", "competition_id", id.String())
}
