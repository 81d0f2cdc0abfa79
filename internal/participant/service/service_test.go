package service

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stagevote/internal/competition"
	compstore "stagevote/internal/competition/store"
	"stagevote/internal/participant"
	partstore "stagevote/internal/participant/store"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/requestcontext"
)

type ApplicationSuite struct {
	suite.Suite

	now time.Time
	ctx context.Context

	competitions *compstore.InMemoryStore
	participants *partstore.InMemoryStore
	svc          *Service

	comp competition.Competition
}

func TestApplicationSuite(t *testing.T) {
	suite.Run(t, new(ApplicationSuite))
}

func (s *ApplicationSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.competitions = compstore.NewInMemoryStore()
	s.participants = partstore.NewInMemoryStore()

	var err error
	s.svc, err = New(s.participants, s.competitions, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s.Require().NoError(err)

	s.comp = competition.Competition{
		ID:      domain.NewCompetitionID(),
		Name:    "City Round",
		Tier:    competition.TierLocal,
		Country: "NO",
		Status:  competition.StatusOpenForParticipants,
		Window: competition.VotingWindow{
			Start: s.now.Add(24 * time.Hour),
			End:   s.now.Add(48 * time.Hour),
		},
		AdvancementQuota: 2,
		CreatedAt:        s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.competitions.Save(s.ctx, s.comp))
}

func (s *ApplicationSuite) TestApplyCreatesPending() {
	p, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)
	s.Equal(participant.StatusPending, p.Status)
	s.Equal("NO", p.Country)
	s.Equal(s.now, p.AppliedAt)
	s.False(p.Eligible())
}

func (s *ApplicationSuite) TestApplyRejectsSecondApplication() {
	user := domain.NewUserID()
	_, err := s.svc.Apply(s.ctx, s.comp.ID, user, "")
	s.Require().NoError(err)

	_, err = s.svc.Apply(s.ctx, s.comp.ID, user, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ApplicationSuite) TestApplyRejectsWrongPhase() {
	for _, status := range []competition.Status{
		competition.StatusDraft,
		competition.StatusVotingOpen,
		competition.StatusVotingClosed,
		competition.StatusFinalized,
	} {
		c := s.comp
		c.ID = domain.NewCompetitionID()
		c.Status = status
		s.Require().NoError(s.competitions.Save(s.ctx, c))

		_, err := s.svc.Apply(s.ctx, c.ID, domain.NewUserID(), "")
		s.Require().Error(err, "status %s", status)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	}
}

func (s *ApplicationSuite) TestApplyRejectsCountryMismatch() {
	_, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "SE")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ApplicationSuite) TestApplyRejectsNilUser() {
	_, err := s.svc.Apply(s.ctx, s.comp.ID, domain.UserID{}, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ApplicationSuite) TestReviewApprovesAndRejects() {
	a, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)
	b, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)

	s.Require().NoError(s.svc.Approve(s.ctx, a.ID))
	s.Require().NoError(s.svc.Reject(s.ctx, b.ID))

	approved, err := s.svc.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.True(approved.Eligible())

	rejected, err := s.svc.Get(s.ctx, b.ID)
	s.Require().NoError(err)
	s.Equal(participant.StatusRejected, rejected.Status)
}

func (s *ApplicationSuite) TestReviewRequiresPending() {
	a, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Approve(s.ctx, a.ID))

	err = s.svc.Approve(s.ctx, a.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	err = s.svc.Reject(s.ctx, a.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ApplicationSuite) TestWithdraw() {
	a, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)
	s.Require().NoError(s.svc.Approve(s.ctx, a.ID))

	s.Require().NoError(s.svc.Withdraw(s.ctx, a.ID))

	p, err := s.svc.Get(s.ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(participant.StatusWithdrawn, p.Status)
	s.False(p.Eligible())

	// Cannot withdraw twice.
	err = s.svc.Withdraw(s.ctx, a.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ApplicationSuite) TestWithdrawBlockedAfterFinalize() {
	c := s.comp
	c.ID = domain.NewCompetitionID()
	s.Require().NoError(s.competitions.Save(s.ctx, c))

	a, err := s.svc.Apply(s.ctx, c.ID, domain.NewUserID(), "")
	s.Require().NoError(err)

	// March the competition to finalized.
	s.Require().NoError(s.competitions.TransitionStatus(s.ctx, c.ID, competition.StatusOpenForParticipants, competition.StatusVotingOpen))
	s.Require().NoError(s.competitions.TransitionStatus(s.ctx, c.ID, competition.StatusVotingOpen, competition.StatusVotingClosed))
	s.Require().NoError(s.competitions.TransitionStatus(s.ctx, c.ID, competition.StatusVotingClosed, competition.StatusFinalized))

	err = s.svc.Withdraw(s.ctx, a.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
}

func (s *ApplicationSuite) TestListByCompetitionOrdersByApplication() {
	first, err := s.svc.Apply(s.ctx, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)

	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Minute))
	second, err := s.svc.Apply(later, s.comp.ID, domain.NewUserID(), "")
	s.Require().NoError(err)

	list, err := s.svc.ListByCompetition(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(first.ID, list[0].ID)
	s.Equal(second.ID, list[1].ID)
}

func (s *ApplicationSuite) TestUnknownIDs() {
	_, err := s.svc.Apply(s.ctx, domain.NewCompetitionID(), domain.NewUserID(), "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	err = s.svc.Approve(s.ctx, domain.NewParticipantID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}
