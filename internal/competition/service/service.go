// Package service manages the competition lifecycle up to finalize.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stagevote/internal/competition"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
	"stagevote/pkg/requestcontext"
)

// ApprovedCounter is the slice of the participant store lifecycle checks need.
type ApprovedCounter interface {
	CountApproved(ctx context.Context, competitionID domain.CompetitionID) (int, error)
}

// CreateInput carries the organizer-supplied fields for a new competition.
type CreateInput struct {
	Name                string
	Tier                competition.Tier
	Country             string
	ParentID            *domain.CompetitionID
	Window              competition.VotingWindow
	AdvancementQuota    int
	AllowSiblingOverlap bool
}

// Service drives competitions through their lifecycle. Status moves only
// forward, one step at a time; the store's compare-and-swap holds that under
// concurrent organizers and the scheduler.
type Service struct {
	competitions competition.Store
	participants ApprovedCounter
	logger       *slog.Logger
}

func New(competitions competition.Store, participants ApprovedCounter, logger *slog.Logger) (*Service, error) {
	if competitions == nil {
		return nil, fmt.Errorf("competition store is required")
	}
	if participants == nil {
		return nil, fmt.Errorf("participant counter is required")
	}
	return &Service{
		competitions: competitions,
		participants: participants,
		logger:       logger,
	}, nil
}

// Create registers a new competition in draft. When the competition has a
// parent, its voting window must not overlap a sibling's unless the overlap
// is explicitly allowed.
func (s *Service) Create(ctx context.Context, in CreateInput) (competition.Competition, error) {
	now := requestcontext.Now(ctx)
	c := competition.Competition{
		ID:                  domain.NewCompetitionID(),
		Name:                in.Name,
		Tier:                in.Tier,
		Country:             in.Country,
		ParentID:            in.ParentID,
		Status:              competition.StatusDraft,
		Window:              in.Window,
		AdvancementQuota:    in.AdvancementQuota,
		AllowSiblingOverlap: in.AllowSiblingOverlap,
		CreatedAt:           now,
	}
	if err := c.Validate(); err != nil {
		return competition.Competition{}, err
	}

	if in.ParentID != nil {
		parent, err := s.competitions.FindByID(ctx, *in.ParentID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return competition.Competition{}, dErrors.New(dErrors.CodeInvalidInput, "parent competition not found")
			}
			return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "parent lookup failed")
		}
		if parent.Tier != c.Tier.Rule().Next {
			return competition.Competition{}, dErrors.New(dErrors.CodeInvalidInput,
				"parent must be one tier above the competition")
		}

		if !c.AllowSiblingOverlap {
			siblings, err := s.competitions.ListSiblings(ctx, *in.ParentID)
			if err != nil {
				return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "sibling list failed")
			}
			for _, sib := range siblings {
				if c.Window.Overlaps(sib.Window) {
					return competition.Competition{}, dErrors.New(dErrors.CodeConflict,
						"voting window overlaps sibling "+sib.Name)
				}
			}
		}
	}

	if err := s.competitions.Save(ctx, c); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return competition.Competition{}, dErrors.New(dErrors.CodeConflict,
				"an active "+string(c.Tier)+" competition already exists for this country")
		}
		return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition save failed")
	}

	s.logger.InfoContext(ctx, "competition created",
		"competition_id", c.ID.String(),
		"tier", string(c.Tier),
		"organizer", requestcontext.Organizer(ctx),
	)
	return c, nil
}

// Get returns one competition.
func (s *Service) Get(ctx context.Context, id domain.CompetitionID) (competition.Competition, error) {
	c, err := s.competitions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return competition.Competition{}, dErrors.New(dErrors.CodeNotFound, "competition not found")
		}
		return competition.Competition{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition lookup failed")
	}
	return c, nil
}

// ListByStatus returns competitions in the given lifecycle state.
func (s *Service) ListByStatus(ctx context.Context, status competition.Status) ([]competition.Competition, error) {
	if !status.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "invalid status: "+string(status))
	}
	out, err := s.competitions.ListByStatus(ctx, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition list failed")
	}
	return out, nil
}

// OpenParticipants moves a draft competition into the application phase.
func (s *Service) OpenParticipants(ctx context.Context, id domain.CompetitionID) error {
	return s.transition(ctx, id, competition.StatusDraft, competition.StatusOpenForParticipants)
}

// OpenVoting starts the voting phase. At least one approved participant is
// required; a field nobody can vote in must not open.
func (s *Service) OpenVoting(ctx context.Context, id domain.CompetitionID) error {
	c, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	approved, err := s.participants.CountApproved(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "approved count failed")
	}
	if approved == 0 {
		return dErrors.New(dErrors.CodeInvalidState, "no eligible participants")
	}

	now := requestcontext.Now(ctx)
	if !now.Before(c.Window.End) {
		return dErrors.New(dErrors.CodeInvalidState, "voting window already ended")
	}

	return s.transition(ctx, id, competition.StatusOpenForParticipants, competition.StatusVotingOpen)
}

// CloseVoting ends the voting phase. The scheduler calls this at window end;
// organizers may close early.
func (s *Service) CloseVoting(ctx context.Context, id domain.CompetitionID) error {
	return s.transition(ctx, id, competition.StatusVotingOpen, competition.StatusVotingClosed)
}

func (s *Service) transition(ctx context.Context, id domain.CompetitionID, from, to competition.Status) error {
	err := s.competitions.TransitionStatus(ctx, id, from, to)
	switch {
	case err == nil:
		s.logger.InfoContext(ctx, "competition status changed",
			"competition_id", id.String(),
			"from", string(from),
			"to", string(to),
		)
		return nil
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "competition not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidState,
			"competition is not "+string(from))
	default:
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "status transition failed")
	}
}
