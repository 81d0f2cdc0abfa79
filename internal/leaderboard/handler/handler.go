// Package handler exposes the standings read endpoint.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"stagevote/internal/leaderboard"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/httputil"
)

// Service defines the standings read the handler delegates to.
type Service interface {
	Rank(ctx context.Context, competitionID domain.CompetitionID, q leaderboard.Query) (leaderboard.Board, error)
}

// Handler wires the leaderboard endpoint to the standings service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the leaderboard endpoint on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/competitions/{competitionID}/leaderboard", h.HandleRank)
}

// Entry is the wire form of one standing.
type Entry struct {
	Rank          int    `json:"rank"`
	ParticipantID string `json:"participant_id"`
	Country       string `json:"country,omitempty"`
	VoteCount     int    `json:"vote_count"`
}

// Response is the wire form of a board.
type Response struct {
	CompetitionID string    `json:"competition_id"`
	GeneratedAt   time.Time `json:"generated_at"`
	TotalVotes    int       `json:"total_votes"`
	Entries       []Entry   `json:"entries"`
}

// HandleRank handles GET /competitions/{competitionID}/leaderboard.
// Query parameters: country, limit, offset.
func (h *Handler) HandleRank(w http.ResponseWriter, r *http.Request) {
	competitionID, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	q := leaderboard.Query{Country: r.URL.Query().Get("country")}
	if q.Limit, err = queryInt(r, "limit"); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if q.Offset, err = queryInt(r, "offset"); err != nil {
		httputil.WriteError(w, err)
		return
	}

	board, err := h.service.Rank(r.Context(), competitionID, q)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := Response{
		CompetitionID: board.CompetitionID.String(),
		GeneratedAt:   board.GeneratedAt,
		TotalVotes:    board.TotalVotes,
		Entries:       make([]Entry, 0, len(board.Entries)),
	}
	for _, e := range board.Entries {
		resp.Entries = append(resp.Entries, Entry{
			Rank:          e.Rank,
			ParticipantID: e.ParticipantID.String(),
			Country:       e.Country,
			VoteCount:     e.VoteCount,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeInvalidInput, name+" must be an integer")
	}
	return n, nil
}
