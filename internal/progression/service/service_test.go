package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"stagevote/internal/competition"
	compstore "stagevote/internal/competition/store"
	"stagevote/internal/events"
	"stagevote/internal/leaderboard"
	"stagevote/internal/ledger"
	ledgerstore "stagevote/internal/ledger/store"
	"stagevote/internal/participant"
	partstore "stagevote/internal/participant/store"
	"stagevote/internal/progression"
	advstore "stagevote/internal/progression/store"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/requestcontext"
)

type captureEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *captureEmitter) Emit(_ context.Context, e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *captureEmitter) byType(t events.Type) []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []events.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type FinalizeSuite struct {
	suite.Suite

	now time.Time
	ctx context.Context

	competitions *compstore.InMemoryStore
	participants *partstore.InMemoryStore
	votes        *ledgerstore.InMemoryStore
	advancements *advstore.InMemoryStore
	tracker      *ledger.Tracker
	emitter      *captureEmitter
	svc          *Service

	comp competition.Competition
}

func TestFinalizeSuite(t *testing.T) {
	suite.Run(t, new(FinalizeSuite))
}

func (s *FinalizeSuite) SetupTest() {
	s.now = time.Date(2026, 7, 1, 20, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.competitions = compstore.NewInMemoryStore()
	s.participants = partstore.NewInMemoryStore()
	s.votes = ledgerstore.NewInMemoryStore()
	s.advancements = advstore.NewInMemoryStore()
	s.tracker = ledger.NewTracker()
	s.emitter = &captureEmitter{}

	standings, err := leaderboard.New(s.participants, s.votes, discardLogger())
	s.Require().NoError(err)

	s.svc, err = New(
		s.competitions, s.participants, s.advancements, standings,
		s.tracker, s.emitter, discardLogger(),
		WithDrainTimeout(200*time.Millisecond),
	)
	s.Require().NoError(err)

	s.comp = competition.Competition{
		ID:      domain.NewCompetitionID(),
		Name:    "City Round",
		Tier:    competition.TierLocal,
		Country: "NO",
		Status:  competition.StatusVotingClosed,
		Window: competition.VotingWindow{
			Start: s.now.Add(-48 * time.Hour),
			End:   s.now.Add(-time.Hour),
		},
		AdvancementQuota: 2,
		CreatedAt:        s.now.Add(-72 * time.Hour),
	}
	s.Require().NoError(s.competitions.Save(s.ctx, s.comp))
}

// seedParticipant adds an approved participant with the given vote count.
func (s *FinalizeSuite) seedParticipant(compID domain.CompetitionID, country string, appliedAt time.Time, voteCount int) participant.Participant {
	p := participant.Participant{
		ID:            domain.NewParticipantID(),
		CompetitionID: compID,
		UserID:        domain.NewUserID(),
		Country:       country,
		Status:        participant.StatusApproved,
		AppliedAt:     appliedAt,
	}
	s.Require().NoError(s.participants.Save(s.ctx, p))
	for i := 0; i < voteCount; i++ {
		s.Require().NoError(s.votes.Append(s.ctx, ledger.Vote{
			ID:            domain.NewVoteID(),
			CompetitionID: compID,
			ParticipantID: p.ID,
			VoterID:       domain.NewVoterID(),
			Kind:          ledger.KindCast,
			CastAt:        appliedAt,
		}))
	}
	return p
}

func (s *FinalizeSuite) TestFinalizeAdvancesTopQuota() {
	first := s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 9)
	second := s.seedParticipant(s.comp.ID, "NO", s.now.Add(-39*time.Hour), 7)
	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-38*time.Hour), 2)

	result, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.False(result.AlreadyFinalized)
	s.Require().Len(result.Winners, 2)
	s.Equal(first.ID, result.Winners[0].ParticipantID)
	s.Equal(1, result.Winners[0].Rank)
	s.Equal(9, result.Winners[0].VoteCount)
	s.Equal(second.ID, result.Winners[1].ParticipantID)
	s.Equal(2, result.Winners[1].Rank)

	// Status sealed.
	sealed, err := s.competitions.FindByID(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Equal(competition.StatusFinalized, sealed.Status)

	// Destination created at the national tier for the same country, with
	// the winners as approved participants.
	s.Require().NotNil(result.DestinationID)
	dest, err := s.competitions.FindByID(s.ctx, *result.DestinationID)
	s.Require().NoError(err)
	s.Equal(competition.TierNational, dest.Tier)
	s.Equal("NO", dest.Country)

	roster, err := s.participants.ListByCompetition(s.ctx, dest.ID)
	s.Require().NoError(err)
	s.Require().Len(roster, 2)
	for _, p := range roster {
		s.Equal(participant.StatusApproved, p.Status)
	}
	// Source order carried into the destination application order.
	s.Equal(first.UserID, roster[0].UserID)
	s.Equal(second.UserID, roster[1].UserID)

	// Source now points at its destination.
	sealed, err = s.competitions.FindByID(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Require().NotNil(sealed.ParentID)
	s.Equal(dest.ID, *sealed.ParentID)

	advanced := s.emitter.byType(events.TypeParticipantAdvanced)
	s.Len(advanced, 2)
	finalized := s.emitter.byType(events.TypeCompetitionFinalized)
	s.Require().Len(finalized, 1)
	s.Equal([]domain.ParticipantID{first.ID, second.ID}, finalized[0].Winners)
}

func (s *FinalizeSuite) TestFinalizeIsIdempotent() {
	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 5)

	first, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)

	second, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.True(second.AlreadyFinalized)
	s.Require().Len(second.Winners, 1)
	s.Equal(first.Winners[0].ParticipantID, second.Winners[0].ParticipantID)
	s.Equal(first.Winners[0].ID, second.Winners[0].ID)

	// No duplicate advancement rows, no duplicate events.
	recorded, err := s.advancements.ListBySource(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Len(recorded, 1)
	s.Len(s.emitter.byType(events.TypeCompetitionFinalized), 1)
}

func (s *FinalizeSuite) TestFinalizeRequiresVotingClosed() {
	for _, status := range []competition.Status{
		competition.StatusDraft,
		competition.StatusOpenForParticipants,
		competition.StatusVotingOpen,
	} {
		c := s.comp
		c.ID = domain.NewCompetitionID()
		c.Status = status
		s.Require().NoError(s.competitions.Save(s.ctx, c))

		_, err := s.svc.Finalize(s.ctx, c.ID)
		s.Require().Error(err, "status %s", status)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	}
}

func (s *FinalizeSuite) TestFinalizeUnknownCompetition() {
	_, err := s.svc.Finalize(s.ctx, domain.NewCompetitionID())
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *FinalizeSuite) TestDrainTimeoutLeavesCompetitionRetryable() {
	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 3)

	// A submission stuck in flight past the drain deadline.
	done := s.tracker.Begin(s.comp.ID)

	_, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))

	// Nothing advanced, status untouched.
	c, err := s.competitions.FindByID(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Equal(competition.StatusVotingClosed, c.Status)
	recorded, err := s.advancements.ListBySource(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Empty(recorded)

	// Once the straggler resolves, the retry completes.
	done()
	result, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Len(result.Winners, 1)
}

func (s *FinalizeSuite) TestFinalizeWithNoParticipants() {
	result, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Empty(result.Winners)
	s.Nil(result.DestinationID)

	c, err := s.competitions.FindByID(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Equal(competition.StatusFinalized, c.Status)

	finalized := s.emitter.byType(events.TypeCompetitionFinalized)
	s.Require().Len(finalized, 1)
	s.Empty(finalized[0].Winners)
}

func (s *FinalizeSuite) TestQuotaLargerThanField() {
	p := s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 1)

	result, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Require().Len(result.Winners, 1)
	s.Equal(p.ID, result.Winners[0].ParticipantID)
}

func (s *FinalizeSuite) TestExplicitParentIsUsedAsDestination() {
	dest := competition.Competition{
		ID:      domain.NewCompetitionID(),
		Name:    "National Final",
		Tier:    competition.TierNational,
		Country: "NO",
		Status:  competition.StatusOpenForParticipants,
		Window: competition.VotingWindow{
			Start: s.now.Add(7 * 24 * time.Hour),
			End:   s.now.Add(14 * 24 * time.Hour),
		},
		AdvancementQuota: 1,
		CreatedAt:        s.now.Add(-72 * time.Hour),
	}
	s.Require().NoError(s.competitions.Save(s.ctx, dest))
	s.Require().NoError(s.competitions.SetParent(s.ctx, s.comp.ID, dest.ID))

	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 4)

	result, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Require().NotNil(result.DestinationID)
	s.Equal(dest.ID, *result.DestinationID)
}

func (s *FinalizeSuite) TestSiblingsShareLazilyCreatedDestination() {
	sibling := s.comp
	sibling.ID = domain.NewCompetitionID()
	sibling.Name = "Harbor Round"
	s.Require().NoError(s.competitions.Save(s.ctx, sibling))

	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 4)
	s.seedParticipant(sibling.ID, "NO", s.now.Add(-40*time.Hour), 6)

	first, err := s.svc.Finalize(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	second, err := s.svc.Finalize(s.ctx, sibling.ID)
	s.Require().NoError(err)

	s.Require().NotNil(first.DestinationID)
	s.Require().NotNil(second.DestinationID)
	s.Equal(*first.DestinationID, *second.DestinationID)

	roster, err := s.participants.ListByCompetition(s.ctx, *first.DestinationID)
	s.Require().NoError(err)
	s.Len(roster, 2)
}

// Two sibling competitions finalizing at the same instant race to create the
// shared destination. The storage uniqueness on active (tier, country) lets
// exactly one create win; the loser re-finds and attaches, so winners are
// never split across duplicate destinations.
func (s *FinalizeSuite) TestConcurrentSiblingFinalizesShareDestination() {
	sibling := s.comp
	sibling.ID = domain.NewCompetitionID()
	sibling.Name = "Harbor Round"
	s.Require().NoError(s.competitions.Save(s.ctx, sibling))

	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 4)
	s.seedParticipant(sibling.ID, "NO", s.now.Add(-40*time.Hour), 6)

	var wg sync.WaitGroup
	results := make([]progression.Result, 2)
	errs := make([]error, 2)
	for i, id := range []domain.CompetitionID{s.comp.ID, sibling.ID} {
		wg.Add(1)
		go func(i int, id domain.CompetitionID) {
			defer wg.Done()
			results[i], errs[i] = s.svc.Finalize(s.ctx, id)
		}(i, id)
	}
	wg.Wait()

	s.Require().NoError(errs[0])
	s.Require().NoError(errs[1])
	s.Require().NotNil(results[0].DestinationID)
	s.Require().NotNil(results[1].DestinationID)
	s.Equal(*results[0].DestinationID, *results[1].DestinationID)

	// Exactly one national destination exists and holds both winners.
	actives, err := s.competitions.ListByStatus(s.ctx, competition.StatusOpenForParticipants)
	s.Require().NoError(err)
	s.Require().Len(actives, 1)
	s.Equal(competition.TierNational, actives[0].Tier)

	roster, err := s.participants.ListByCompetition(s.ctx, *results[0].DestinationID)
	s.Require().NoError(err)
	s.Len(roster, 2)
}

func (s *FinalizeSuite) TestNationalFinalizeAggregatesIntoGlobal() {
	national := competition.Competition{
		ID:      domain.NewCompetitionID(),
		Name:    "National Final",
		Tier:    competition.TierNational,
		Country: "NO",
		Status:  competition.StatusVotingClosed,
		Window: competition.VotingWindow{
			Start: s.now.Add(-48 * time.Hour),
			End:   s.now.Add(-time.Hour),
		},
		AdvancementQuota: 1,
		CreatedAt:        s.now.Add(-72 * time.Hour),
	}
	s.Require().NoError(s.competitions.Save(s.ctx, national))
	s.seedParticipant(national.ID, "NO", s.now.Add(-40*time.Hour), 8)

	result, err := s.svc.Finalize(s.ctx, national.ID)
	s.Require().NoError(err)
	s.Require().NotNil(result.DestinationID)

	dest, err := s.competitions.FindByID(s.ctx, *result.DestinationID)
	s.Require().NoError(err)
	s.Equal(competition.TierGlobal, dest.Tier)
	s.Empty(dest.Country)
	s.Zero(dest.AdvancementQuota)
}

func (s *FinalizeSuite) TestGlobalFinalizeIsTerminal() {
	global := competition.Competition{
		ID:     domain.NewCompetitionID(),
		Name:   "Global Final",
		Tier:   competition.TierGlobal,
		Status: competition.StatusVotingClosed,
		Window: competition.VotingWindow{
			Start: s.now.Add(-48 * time.Hour),
			End:   s.now.Add(-time.Hour),
		},
		CreatedAt: s.now.Add(-72 * time.Hour),
	}
	s.Require().NoError(s.competitions.Save(s.ctx, global))
	champion := s.seedParticipant(global.ID, "NO", s.now.Add(-40*time.Hour), 12)
	s.seedParticipant(global.ID, "SE", s.now.Add(-39*time.Hour), 4)

	result, err := s.svc.Finalize(s.ctx, global.ID)
	s.Require().NoError(err)
	s.Empty(result.Winners)
	s.Nil(result.DestinationID)

	finalized := s.emitter.byType(events.TypeCompetitionFinalized)
	s.Require().Len(finalized, 1)
	s.Equal([]domain.ParticipantID{champion.ID}, finalized[0].Winners)
}

func (s *FinalizeSuite) TestConcurrentFinalizeRunsOnce() {
	s.seedParticipant(s.comp.ID, "NO", s.now.Add(-40*time.Hour), 5)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.svc.Finalize(s.ctx, s.comp.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		s.Require().NoError(err)
	}
	recorded, err := s.advancements.ListBySource(s.ctx, s.comp.ID)
	s.Require().NoError(err)
	s.Len(recorded, 1)
	s.Len(s.emitter.byType(events.TypeCompetitionFinalized), 1)
}
