// Package handler exposes the participant application endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagevote/internal/participant"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/httputil"
	"stagevote/pkg/requestcontext"
)

// Service defines the application operations the handler delegates to.
type Service interface {
	Apply(ctx context.Context, competitionID domain.CompetitionID, userID domain.UserID, country string) (participant.Participant, error)
	Approve(ctx context.Context, id domain.ParticipantID) error
	Reject(ctx context.Context, id domain.ParticipantID) error
	Withdraw(ctx context.Context, id domain.ParticipantID) error
	Get(ctx context.Context, id domain.ParticipantID) (participant.Participant, error)
	ListByCompetition(ctx context.Context, competitionID domain.CompetitionID) ([]participant.Participant, error)
}

// Handler wires participant endpoints to the application service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the applicant-facing endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/competitions/{competitionID}/participants", h.HandleApply)
	r.Get("/competitions/{competitionID}/participants", h.HandleList)
	r.Get("/participants/{participantID}", h.HandleGet)
	r.Post("/participants/{participantID}/withdraw", h.HandleWithdraw)
}

// RegisterOrganizer mounts the review endpoints.
func (h *Handler) RegisterOrganizer(r chi.Router) {
	r.Post("/participants/{participantID}/approve", h.HandleApprove)
	r.Post("/participants/{participantID}/reject", h.HandleReject)
}

// ApplyRequest is the wire form of an application.
type ApplyRequest struct {
	UserID  string `json:"user_id"`
	Country string `json:"country,omitempty"`
}

// Response is the wire form of a participant.
type Response struct {
	ID            string    `json:"id"`
	CompetitionID string    `json:"competition_id"`
	UserID        string    `json:"user_id"`
	Country       string    `json:"country,omitempty"`
	Status        string    `json:"status"`
	AppliedAt     time.Time `json:"applied_at"`
}

// FromParticipant maps the domain model to the wire form.
func FromParticipant(p participant.Participant) Response {
	return Response{
		ID:            p.ID.String(),
		CompetitionID: p.CompetitionID.String(),
		UserID:        p.UserID.String(),
		Country:       p.Country,
		Status:        string(p.Status),
		AppliedAt:     p.AppliedAt,
	}
}

// HandleApply handles POST /competitions/{competitionID}/participants.
func (h *Handler) HandleApply(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	competitionID, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	body, err := httputil.Decode[ApplyRequest](w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	userID, err := domain.ParseUserID(body.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	p, err := h.service.Apply(ctx, competitionID, userID, body.Country)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "application received",
		"request_id", requestcontext.RequestID(ctx),
		"participant_id", p.ID.String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromParticipant(p))
}

// HandleList handles GET /competitions/{competitionID}/participants.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	competitionID, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	list, err := h.service.ListByCompetition(r.Context(), competitionID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]Response, 0, len(list))
	for _, p := range list {
		out = append(out, FromParticipant(p))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"participants": out})
}

// HandleGet handles GET /participants/{participantID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(p))
}

// HandleApprove handles POST /participants/{participantID}/approve.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Approve)
}

// HandleReject handles POST /participants/{participantID}/reject.
func (h *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Reject)
}

// HandleWithdraw handles POST /participants/{participantID}/withdraw.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.service.Withdraw)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id domain.ParticipantID) error) {
	ctx := r.Context()
	id, err := domain.ParseParticipantID(chi.URLParam(r, "participantID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := op(ctx, id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.service.Get(ctx, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromParticipant(p))
}
