// Package service handles participant applications and their review.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"stagevote/internal/competition"
	"stagevote/internal/participant"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/sentinel"
	"stagevote/pkg/requestcontext"
)

// CompetitionReader is the slice of the competition store applications need.
type CompetitionReader interface {
	FindByID(ctx context.Context, id domain.CompetitionID) (competition.Competition, error)
}

// Service manages the application workflow: apply, review, withdraw.
type Service struct {
	participants participant.Store
	competitions CompetitionReader
	logger       *slog.Logger
}

func New(participants participant.Store, competitions CompetitionReader, logger *slog.Logger) (*Service, error) {
	if participants == nil {
		return nil, fmt.Errorf("participant store is required")
	}
	if competitions == nil {
		return nil, fmt.Errorf("competition reader is required")
	}
	return &Service{
		participants: participants,
		competitions: competitions,
		logger:       logger,
	}, nil
}

// Apply files a pending application. One application per user per
// competition; the competition must be accepting participants.
func (s *Service) Apply(ctx context.Context, competitionID domain.CompetitionID, userID domain.UserID, country string) (participant.Participant, error) {
	if userID.IsNil() {
		return participant.Participant{}, dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}

	comp, err := s.competitions.FindByID(ctx, competitionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return participant.Participant{}, dErrors.New(dErrors.CodeNotFound, "competition not found")
		}
		return participant.Participant{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "competition lookup failed")
	}
	if comp.Status != competition.StatusOpenForParticipants {
		return participant.Participant{}, dErrors.New(dErrors.CodeInvalidState, "competition is not accepting participants")
	}

	// Country-scoped competitions pin the participant's country.
	if comp.Country != "" {
		if country == "" {
			country = comp.Country
		} else if country != comp.Country {
			return participant.Participant{}, dErrors.New(dErrors.CodeInvalidInput,
				"participant country must match the competition")
		}
	}

	p := participant.Participant{
		ID:            domain.NewParticipantID(),
		CompetitionID: competitionID,
		UserID:        userID,
		Country:       country,
		Status:        participant.StatusPending,
		AppliedAt:     requestcontext.Now(ctx),
	}
	if err := s.participants.Save(ctx, p); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return participant.Participant{}, dErrors.New(dErrors.CodeConflict, "user already applied to this competition")
		}
		return participant.Participant{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "application save failed")
	}

	s.logger.InfoContext(ctx, "participant applied",
		"participant_id", p.ID.String(),
		"competition_id", competitionID.String(),
	)
	return p, nil
}

// Approve accepts a pending application.
func (s *Service) Approve(ctx context.Context, id domain.ParticipantID) error {
	return s.review(ctx, id, participant.StatusApproved)
}

// Reject declines a pending application.
func (s *Service) Reject(ctx context.Context, id domain.ParticipantID) error {
	return s.review(ctx, id, participant.StatusRejected)
}

func (s *Service) review(ctx context.Context, id domain.ParticipantID, to participant.Status) error {
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != participant.StatusPending {
		return dErrors.New(dErrors.CodeInvalidState, "application is not pending")
	}
	if err := s.participants.UpdateStatus(ctx, id, to); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "status update failed")
	}
	s.logger.InfoContext(ctx, "application reviewed",
		"participant_id", id.String(),
		"status", string(to),
		"organizer", requestcontext.Organizer(ctx),
	)
	return nil
}

// Withdraw removes a participant from contention. Allowed while the
// competition is not finalized; votes already in the ledger stay there, the
// participant just stops appearing in standings.
func (s *Service) Withdraw(ctx context.Context, id domain.ParticipantID) error {
	p, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if p.Status != participant.StatusPending && p.Status != participant.StatusApproved {
		return dErrors.New(dErrors.CodeInvalidState, "participant cannot withdraw from state "+string(p.Status))
	}

	comp, err := s.competitions.FindByID(ctx, p.CompetitionID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "competition lookup failed")
	}
	if comp.Status == competition.StatusFinalized {
		return dErrors.New(dErrors.CodeInvalidState, "competition is already finalized")
	}

	if err := s.participants.UpdateStatus(ctx, id, participant.StatusWithdrawn); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "status update failed")
	}
	s.logger.InfoContext(ctx, "participant withdrew",
		"participant_id", id.String(),
		"competition_id", p.CompetitionID.String(),
	)
	return nil
}

// Get returns one participant.
func (s *Service) Get(ctx context.Context, id domain.ParticipantID) (participant.Participant, error) {
	return s.get(ctx, id)
}

// ListByCompetition returns a competition's participants in application order.
func (s *Service) ListByCompetition(ctx context.Context, competitionID domain.CompetitionID) ([]participant.Participant, error) {
	out, err := s.participants.ListByCompetition(ctx, competitionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "participant list failed")
	}
	return out, nil
}

func (s *Service) get(ctx context.Context, id domain.ParticipantID) (participant.Participant, error) {
	p, err := s.participants.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return participant.Participant{}, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return participant.Participant{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "participant lookup failed")
	}
	return p, nil
}
