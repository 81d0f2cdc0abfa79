// Package httptransport assembles the HTTP surface: middleware chain, public
// routes, and the organizer-guarded write surface.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stagevote/pkg/platform/middleware/auth"
	"stagevote/pkg/platform/middleware/metadata"
	"stagevote/pkg/platform/middleware/request"
	"stagevote/pkg/platform/middleware/requesttime"
)

// Registrar mounts routes on a chi router.
type Registrar interface {
	Register(r chi.Router)
}

// SplitRegistrar mounts public and organizer-guarded routes separately.
type SplitRegistrar interface {
	RegisterPublic(r chi.Router)
	RegisterOrganizer(r chi.Router)
}

// Deps carries everything the router mounts.
type Deps struct {
	Votes        Registrar
	Leaderboard  Registrar
	Competitions SplitRegistrar
	Participants SplitRegistrar
	Progression  SplitRegistrar

	TokenValidator auth.Validator
	Health         *HealthHandler
	Logger         *slog.Logger
}

// NewRouter builds the full route tree.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	r.Use(request.Logger(d.Logger))
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	if d.Health != nil {
		d.Health.Register(r)
	}
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public surface: votes, reads, applications.
	r.Group(func(r chi.Router) {
		if d.Votes != nil {
			d.Votes.Register(r)
		}
		if d.Leaderboard != nil {
			d.Leaderboard.Register(r)
		}
		if d.Competitions != nil {
			d.Competitions.RegisterPublic(r)
		}
		if d.Participants != nil {
			d.Participants.RegisterPublic(r)
		}
		if d.Progression != nil {
			d.Progression.RegisterPublic(r)
		}
	})

	// Organizer surface: lifecycle writes, review, finalize.
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireOrganizer(d.TokenValidator, d.Logger))
		if d.Competitions != nil {
			d.Competitions.RegisterOrganizer(r)
		}
		if d.Participants != nil {
			d.Participants.RegisterOrganizer(r)
		}
		if d.Progression != nil {
			d.Progression.RegisterOrganizer(r)
		}
	})

	return r
}
