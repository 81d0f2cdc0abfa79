// Package handler exposes the vote submission endpoints.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagevote/internal/fraudguard"
	dErrors "stagevote/pkg/domain-errors"
	"stagevote/pkg/domain"
	"stagevote/pkg/platform/httputil"
	"stagevote/pkg/requestcontext"
)

// Service defines the vote operations the handler delegates to.
type Service interface {
	Submit(ctx context.Context, req fraudguard.VoteRequest) (fraudguard.Decision, error)
	Retract(ctx context.Context, req fraudguard.VoteRequest) (fraudguard.Decision, error)
}

// Fingerprinter hashes the client IP into the vote fingerprint.
type Fingerprinter interface {
	Fingerprint(clientIP string) string
}

// Handler wires vote endpoints to the admission service.
type Handler struct {
	service     Service
	fingerprint Fingerprinter
	logger      *slog.Logger
}

func New(service Service, fingerprint Fingerprinter, logger *slog.Logger) *Handler {
	return &Handler{
		service:     service,
		fingerprint: fingerprint,
		logger:      logger,
	}
}

// Register mounts vote endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/competitions/{competitionID}/votes", h.HandleSubmit)
	r.Delete("/competitions/{competitionID}/votes", h.HandleRetract)
}

// VoteRequest is the wire form of a vote submission.
type VoteRequest struct {
	ParticipantID string `json:"participant_id"`
	VoterID       string `json:"voter_id"`
}

// VoteResponse is the wire form of a decision.
type VoteResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`
	NewCount int    `json:"new_count"`
}

// HeaderVoterVerified is set by the identity gateway in front of the engine
// when the voter's identity has been verified.
const HeaderVoterVerified = "X-Voter-Verified"

func (h *Handler) decodeVote(w http.ResponseWriter, r *http.Request) (fraudguard.VoteRequest, error) {
	competitionID, err := domain.ParseCompetitionID(chi.URLParam(r, "competitionID"))
	if err != nil {
		return fraudguard.VoteRequest{}, err
	}

	body, err := httputil.Decode[VoteRequest](w, r)
	if err != nil {
		return fraudguard.VoteRequest{}, err
	}
	participantID, err := domain.ParseParticipantID(body.ParticipantID)
	if err != nil {
		return fraudguard.VoteRequest{}, err
	}
	voterID, err := domain.ParseVoterID(body.VoterID)
	if err != nil {
		return fraudguard.VoteRequest{}, err
	}

	return fraudguard.VoteRequest{
		CompetitionID: competitionID,
		ParticipantID: participantID,
		VoterID:       voterID,
		Fingerprint:   h.fingerprint.Fingerprint(requestcontext.ClientIP(r.Context())),
		VoterVerified: r.Header.Get(HeaderVoterVerified) == "true",
	}, nil
}

// HandleSubmit handles POST /competitions/{competitionID}/votes.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	start := time.Now()

	req, err := h.decodeVote(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.service.Submit(ctx, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "vote submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"competition_id", req.CompetitionID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "vote decided",
		"request_id", requestcontext.RequestID(ctx),
		"competition_id", req.CompetitionID.String(),
		"accepted", decision.Accepted,
		"reason", string(decision.Reason),
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if !decision.Accepted {
		// A rejection is a resolved decision; the reason travels in the
		// body under one status so clients branch on the payload.
		httputil.WriteJSON(w, http.StatusConflict, VoteResponse{
			Accepted: false,
			Reason:   string(decision.Reason),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, VoteResponse{
		Accepted: true,
		NewCount: decision.NewCount,
	})
}

// HandleRetract handles DELETE /competitions/{competitionID}/votes.
func (h *Handler) HandleRetract(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, err := h.decodeVote(w, r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	decision, err := h.service.Retract(ctx, req)
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) && !dErrors.HasCode(err, dErrors.CodeConflict) {
			h.logger.ErrorContext(ctx, "vote retraction failed",
				"request_id", requestcontext.RequestID(ctx),
				"competition_id", req.CompetitionID.String(),
				"error", err,
			)
		}
		httputil.WriteError(w, err)
		return
	}
	if !decision.Accepted {
		httputil.WriteJSON(w, http.StatusConflict, VoteResponse{
			Accepted: false,
			Reason:   string(decision.Reason),
		})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, VoteResponse{
		Accepted: true,
		NewCount: decision.NewCount,
	})
}
