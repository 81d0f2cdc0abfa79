package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	compHandler "stagevote/internal/competition/handler"
	compService "stagevote/internal/competition/service"
	compstore "stagevote/internal/competition/store"
	"stagevote/internal/events"
	"stagevote/internal/fraudguard"
	voteHandler "stagevote/internal/fraudguard/handler"
	voteService "stagevote/internal/fraudguard/service"
	"stagevote/internal/leaderboard"
	lbHandler "stagevote/internal/leaderboard/handler"
	"stagevote/internal/ledger"
	ledgerstore "stagevote/internal/ledger/store"
	partHandler "stagevote/internal/participant/handler"
	partService "stagevote/internal/participant/service"
	partstore "stagevote/internal/participant/store"
	"stagevote/internal/platform/token"
	progHandler "stagevote/internal/progression/handler"
	progService "stagevote/internal/progression/service"
	advstore "stagevote/internal/progression/store"
	"stagevote/internal/ratelimit"
	"stagevote/internal/ratelimit/store/bucket"
)

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, events.Event) {}

type RouterSuite struct {
	suite.Suite

	server *httptest.Server
	tokens *token.Service
	bearer string
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	competitions := compstore.NewInMemoryStore()
	participants := partstore.NewInMemoryStore()
	votes := ledgerstore.NewInMemoryStore()
	advancements := advstore.NewInMemoryStore()
	tracker := ledger.NewTracker()

	limiter, err := ratelimit.NewLimiter(bucket.NewInMemoryStore(), ratelimit.Limits{
		VoterLimit:       20,
		FingerprintLimit: 50,
		Window:           time.Minute,
	})
	s.Require().NoError(err)

	lifecycle, err := compService.New(competitions, participants, logger)
	s.Require().NoError(err)
	applications, err := partService.New(participants, competitions, logger)
	s.Require().NoError(err)
	standings, err := leaderboard.New(participants, votes, logger)
	s.Require().NoError(err)
	admission, err := voteService.New(competitions, participants, votes, tracker, limiter, nopEmitter{}, logger)
	s.Require().NoError(err)
	finalizer, err := progService.New(competitions, participants, advancements, standings, tracker, nopEmitter{}, logger)
	s.Require().NoError(err)

	hasher, err := fraudguard.NewHasher("router-test-key")
	s.Require().NoError(err)

	s.tokens = token.NewService("router-test-signing-key", "stagevote")
	signed, err := s.tokens.Issue("organizer-1", time.Minute)
	s.Require().NoError(err)
	s.bearer = "Bearer " + signed

	router := NewRouter(Deps{
		Votes:          voteHandler.New(admission, hasher, logger),
		Leaderboard:    lbHandler.New(standings, logger),
		Competitions:   compHandler.New(lifecycle, logger),
		Participants:   partHandler.New(applications, logger),
		Progression:    progHandler.New(finalizer, advancements, logger),
		TokenValidator: s.tokens,
		Health:         NewHealthHandler(),
		Logger:         logger,
	})
	s.server = httptest.NewServer(router)
}

func (s *RouterSuite) TearDownTest() {
	s.server.Close()
}

func (s *RouterSuite) do(method, path, bearer string, body any, headers map[string]string) (*http.Response, map[string]any) {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	s.Require().NoError(err)
	if bearer != "" {
		req.Header.Set("Authorization", bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (s *RouterSuite) createCompetition() string {
	resp, body := s.do(http.MethodPost, "/competitions", s.bearer, map[string]any{
		"name":              "City Round",
		"tier":              "local",
		"country":           "NO",
		"window_start":      time.Now().Add(-time.Hour).Format(time.RFC3339),
		"window_end":        time.Now().Add(time.Hour).Format(time.RFC3339),
		"advancement_quota": 1,
	}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	return body["id"].(string)
}

// marchToVoting takes a fresh competition through application and approval to
// voting_open, returning the approved participant's ID.
func (s *RouterSuite) marchToVoting(compID string) string {
	resp, _ := s.do(http.MethodPost, "/competitions/"+compID+"/open-participants", s.bearer, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, applied := s.do(http.MethodPost, "/competitions/"+compID+"/participants", "", map[string]any{
		"user_id": "090b1649-33a3-4b7f-9d1c-6f8a29e2f001",
	}, nil)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	participantID := applied["id"].(string)

	resp, _ = s.do(http.MethodPost, "/participants/"+participantID+"/approve", s.bearer, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/competitions/"+compID+"/open-voting", s.bearer, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	return participantID
}

func (s *RouterSuite) TestOrganizerEndpointsRequireToken() {
	resp, body := s.do(http.MethodPost, "/competitions", "", map[string]any{"name": "x"}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
	s.Equal("unauthorized", body["error"])

	resp, _ = s.do(http.MethodPost, "/competitions", "Bearer garbage", map[string]any{"name": "x"}, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func (s *RouterSuite) TestCreateAndGetCompetition() {
	id := s.createCompetition()

	resp, body := s.do(http.MethodGet, "/competitions/"+id, "", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("draft", body["status"])
	s.Equal("local", body["tier"])
}

func (s *RouterSuite) TestCreateValidation() {
	resp, body := s.do(http.MethodPost, "/competitions", s.bearer, map[string]any{
		"name": "Bad", "tier": "continental",
	}, nil)
	s.Equal(http.StatusBadRequest, resp.StatusCode)
	s.Equal("invalid_input", body["error"])
}

func (s *RouterSuite) TestVoteFlow() {
	compID := s.createCompetition()
	participantID := s.marchToVoting(compID)

	verified := map[string]string{voteHandler.HeaderVoterVerified: "true"}
	vote := map[string]any{
		"participant_id": participantID,
		"voter_id":       "8b9fc76e-4a09-46d0-9df2-8f1d4c2f9a10",
	}

	// Unverified voter is refused.
	resp, body := s.do(http.MethodPost, "/competitions/"+compID+"/votes", "", vote, nil)
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("UNVERIFIED_VOTER", body["reason"])

	// Verified voter lands the vote.
	resp, body = s.do(http.MethodPost, "/competitions/"+compID+"/votes", "", vote, verified)
	s.Equal(http.StatusCreated, resp.StatusCode)
	s.Equal(true, body["accepted"])
	s.Equal(float64(1), body["new_count"])

	// Same voter again is a duplicate.
	resp, body = s.do(http.MethodPost, "/competitions/"+compID+"/votes", "", vote, verified)
	s.Equal(http.StatusConflict, resp.StatusCode)
	s.Equal("DUPLICATE_VOTE", body["reason"])

	// The leaderboard reflects the accepted vote.
	resp, board := s.do(http.MethodGet, "/competitions/"+compID+"/leaderboard", "", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	entries := board["entries"].([]any)
	s.Require().Len(entries, 1)
	s.Equal(float64(1), entries[0].(map[string]any)["vote_count"])
}

func (s *RouterSuite) TestRetractFlow() {
	compID := s.createCompetition()
	participantID := s.marchToVoting(compID)

	verified := map[string]string{voteHandler.HeaderVoterVerified: "true"}
	vote := map[string]any{
		"participant_id": participantID,
		"voter_id":       "8b9fc76e-4a09-46d0-9df2-8f1d4c2f9a10",
	}

	resp, _ := s.do(http.MethodPost, "/competitions/"+compID+"/votes", "", vote, verified)
	s.Require().Equal(http.StatusCreated, resp.StatusCode)

	resp, body := s.do(http.MethodDelete, "/competitions/"+compID+"/votes", "", vote, verified)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(float64(0), body["new_count"])

	// The ledger already holds a retraction for this voter.
	resp, _ = s.do(http.MethodDelete, "/competitions/"+compID+"/votes", "", vote, verified)
	s.Equal(http.StatusConflict, resp.StatusCode)
}

func (s *RouterSuite) TestFinalizeFlow() {
	compID := s.createCompetition()
	participantID := s.marchToVoting(compID)

	verified := map[string]string{voteHandler.HeaderVoterVerified: "true"}
	for i := 0; i < 3; i++ {
		resp, _ := s.do(http.MethodPost, "/competitions/"+compID+"/votes", "", map[string]any{
			"participant_id": participantID,
			"voter_id":       fmt.Sprintf("8b9fc76e-4a09-46d0-9df2-8f1d4c2f9a1%d", i),
		}, verified)
		s.Require().Equal(http.StatusCreated, resp.StatusCode)
	}

	// Finalize requires voting_closed.
	resp, _ := s.do(http.MethodPost, "/competitions/"+compID+"/finalize", s.bearer, nil, nil)
	s.Equal(http.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = s.do(http.MethodPost, "/competitions/"+compID+"/close-voting", s.bearer, nil, nil)
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	resp, result := s.do(http.MethodPost, "/competitions/"+compID+"/finalize", s.bearer, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(false, result["already_finalized"])
	winners := result["winners"].([]any)
	s.Require().Len(winners, 1)
	s.Equal(participantID, winners[0].(map[string]any)["participant_id"])
	s.NotEmpty(result["destination_id"])

	// Finalize is guarded.
	resp, _ = s.do(http.MethodPost, "/competitions/"+compID+"/finalize", "", nil, nil)
	s.Equal(http.StatusUnauthorized, resp.StatusCode)

	// Replay returns the recorded outcome.
	resp, replay := s.do(http.MethodPost, "/competitions/"+compID+"/finalize", s.bearer, nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal(true, replay["already_finalized"])

	// Advancements are readable without auth.
	resp, advs := s.do(http.MethodGet, "/competitions/"+compID+"/advancements", "", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Require().Len(advs["advancements"].([]any), 1)
}

func (s *RouterSuite) TestHealthEndpoints() {
	resp, body := s.do(http.MethodGet, "/healthz", "", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
	s.Equal("ok", body["status"])

	resp, _ = s.do(http.MethodGet, "/readyz", "", nil, nil)
	s.Equal(http.StatusOK, resp.StatusCode)
}

func (s *RouterSuite) TestMetricsExposed() {
	resp, err := s.server.Client().Get(s.server.URL + "/metrics")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal(http.StatusOK, resp.StatusCode)
}
