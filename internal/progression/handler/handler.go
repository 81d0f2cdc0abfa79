// Package handler exposes finalize and the advancement read surface.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagevote/internal/progression"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/httputil"
	"stagevote/pkg/requestcontext"
)

// Service defines the finalize operation the handler delegates to.
type Service interface {
	Finalize(ctx context.Context, id domain.CompetitionID) (progression.Result, error)
}

// AdvancementReader lists recorded advancements.
type AdvancementReader interface {
	ListBySource(ctx context.Context, sourceID domain.CompetitionID) ([]progression.Advancement, error)
}

// Handler wires progression endpoints.
type Handler struct {
	service      Service
	advancements AdvancementReader
	logger       *slog.Logger
}

func New(service Service, advancements AdvancementReader, logger *slog.Logger) *Handler {
	return &Handler{
		service:      service,
		advancements: advancements,
		logger:       logger,
	}
}

// RegisterPublic mounts the advancement read endpoint.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/competitions/{competitionID}/advancements", h.HandleListAdvancements)
}

// RegisterOrganizer mounts finalize; the router guards it with organizer auth.
func (h *Handler) RegisterOrganizer(r chi.Router) {
	r.Post("/competitions/{competitionID}/finalize", h.HandleFinalize)
}

// AdvancementResponse is the wire form of one advancement.
type AdvancementResponse struct {
	ParticipantID            string    `json:"participant_id"`
	DestinationCompetitionID string    `json:"destination_competition_id"`
	DestinationParticipantID string    `json:"destination_participant_id"`
	Rank                     int       `json:"rank"`
	VoteCount                int       `json:"vote_count"`
	AdvancedAt               time.Time `json:"advanced_at"`
}

// FinalizeResponse is the wire form of a finalize outcome.
type FinalizeResponse struct {
	CompetitionID    string                `json:"competition_id"`
	AlreadyFinalized bool                  `json:"already_finalized"`
	DestinationID    string                `json:"destination_id,omitempty"`
	Winners          []AdvancementResponse `json:"winners"`
	FinalizedAt      time.Time             `json:"finalized_at"`
}

func fromAdvancements(advs []progression.Advancement) []AdvancementResponse {
	out := make([]AdvancementResponse, 0, len(advs))
	for _, a := range advs {
		out = append(out, AdvancementResponse{
			ParticipantID:            a.ParticipantID.String(),
			DestinationCompetitionID: a.DestinationCompetitionID.String(),
			DestinationParticipantID: a.DestinationParticipantID.String(),
			Rank:                     a.Rank,
			VoteCount:                a.VoteCount,
			AdvancedAt:               a.AdvancedAt,
		})
	}
	return out
}

// HandleFinalize handles POST /competitions/{competitionID}/finalize.
func (h *Handler) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	id, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.service.Finalize(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "finalize failed",
			"request_id", requestcontext.RequestID(ctx),
			"competition_id", id.String(),
			"organizer", requestcontext.Organizer(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "finalize completed",
		"request_id", requestcontext.RequestID(ctx),
		"competition_id", id.String(),
		"already_finalized", result.AlreadyFinalized,
		"winners", len(result.Winners),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	resp := FinalizeResponse{
		CompetitionID:    result.CompetitionID.String(),
		AlreadyFinalized: result.AlreadyFinalized,
		Winners:          fromAdvancements(result.Winners),
		FinalizedAt:      result.FinalizedAt,
	}
	if result.DestinationID != nil {
		resp.DestinationID = result.DestinationID.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleListAdvancements handles GET /competitions/{competitionID}/advancements.
func (h *Handler) HandleListAdvancements(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	advs, err := h.advancements.ListBySource(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"advancements": fromAdvancements(advs)})
}
