// Package handler exposes the competition lifecycle endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagevote/internal/competition"
	"stagevote/internal/competition/service"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/httputil"
	"stagevote/pkg/requestcontext"
)

// Service defines the lifecycle operations the handler delegates to.
type Service interface {
	Create(ctx context.Context, in service.CreateInput) (competition.Competition, error)
	Get(ctx context.Context, id domain.CompetitionID) (competition.Competition, error)
	ListByStatus(ctx context.Context, status competition.Status) ([]competition.Competition, error)
	OpenParticipants(ctx context.Context, id domain.CompetitionID) error
	OpenVoting(ctx context.Context, id domain.CompetitionID) error
	CloseVoting(ctx context.Context, id domain.CompetitionID) error
}

// Handler wires competition endpoints to the lifecycle service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the read endpoints.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/competitions", h.HandleList)
	r.Get("/competitions/{competitionID}", h.HandleGet)
}

// RegisterOrganizer mounts the write endpoints; the router guards them with
// organizer auth.
func (h *Handler) RegisterOrganizer(r chi.Router) {
	r.Post("/competitions", h.HandleCreate)
	r.Post("/competitions/{competitionID}/open-participants", h.transitionHandler(h.service.OpenParticipants))
	r.Post("/competitions/{competitionID}/open-voting", h.transitionHandler(h.service.OpenVoting))
	r.Post("/competitions/{competitionID}/close-voting", h.transitionHandler(h.service.CloseVoting))
}

// CreateRequest is the wire form of a new competition.
type CreateRequest struct {
	Name                string    `json:"name"`
	Tier                string    `json:"tier"`
	Country             string    `json:"country,omitempty"`
	ParentID            string    `json:"parent_id,omitempty"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	AdvancementQuota    int       `json:"advancement_quota"`
	AllowSiblingOverlap bool      `json:"allow_sibling_overlap,omitempty"`
}

// Response is the wire form of a competition.
type Response struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Tier                string    `json:"tier"`
	Country             string    `json:"country,omitempty"`
	ParentID            string    `json:"parent_id,omitempty"`
	Status              string    `json:"status"`
	WindowStart         time.Time `json:"window_start"`
	WindowEnd           time.Time `json:"window_end"`
	AdvancementQuota    int       `json:"advancement_quota"`
	AllowSiblingOverlap bool      `json:"allow_sibling_overlap"`
	CreatedAt           time.Time `json:"created_at"`
}

// FromCompetition maps the domain model to the wire form.
func FromCompetition(c competition.Competition) Response {
	resp := Response{
		ID:                  c.ID.String(),
		Name:                c.Name,
		Tier:                string(c.Tier),
		Country:             c.Country,
		Status:              string(c.Status),
		WindowStart:         c.Window.Start,
		WindowEnd:           c.Window.End,
		AdvancementQuota:    c.AdvancementQuota,
		AllowSiblingOverlap: c.AllowSiblingOverlap,
		CreatedAt:           c.CreatedAt,
	}
	if c.ParentID != nil {
		resp.ParentID = c.ParentID.String()
	}
	return resp
}

// HandleCreate handles POST /competitions.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := httputil.Decode[CreateRequest](w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tier, err := competition.ParseTier(body.Tier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	in := service.CreateInput{
		Name:                body.Name,
		Tier:                tier,
		Country:             body.Country,
		Window:              competition.VotingWindow{Start: body.WindowStart, End: body.WindowEnd},
		AdvancementQuota:    body.AdvancementQuota,
		AllowSiblingOverlap: body.AllowSiblingOverlap,
	}
	if body.ParentID != "" {
		parentID, err := domain.ParseCompetitionID(body.ParentID)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		in.ParentID = &parentID
	}

	created, err := h.service.Create(ctx, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "competition created via api",
		"request_id", requestcontext.RequestID(ctx),
		"competition_id", created.ID.String(),
		"organizer", requestcontext.Organizer(ctx),
	)
	httputil.WriteJSON(w, http.StatusCreated, FromCompetition(created))
}

// HandleGet handles GET /competitions/{competitionID}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromCompetition(c))
}

// HandleList handles GET /competitions?status=...
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	status := competition.Status(r.URL.Query().Get("status"))
	if status == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "status query parameter is required"))
		return
	}
	list, err := h.service.ListByStatus(r.Context(), status)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := make([]Response, 0, len(list))
	for _, c := range list {
		out = append(out, FromCompetition(c))
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"competitions": out})
}

func (h *Handler) transitionHandler(op func(ctx context.Context, id domain.CompetitionID) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		if err := op(ctx, id); err != nil {
			httputil.WriteError(w, err)
			return
		}
		c, err := h.service.Get(ctx, id)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		httputil.WriteJSON(w, http.StatusOK, FromCompetition(c))
	}
}
