package httptransport

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"stagevote/pkg/platform/httputil"
)

// HealthChecker reports the health of one dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks map[string]HealthChecker
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{checks: make(map[string]HealthChecker)}
}

// AddCheck registers a named dependency for the readiness probe. Nil checkers
// are ignored so optional dependencies (Redis, Postgres) wire in without
// branching at the call site.
func (h *HealthHandler) AddCheck(name string, c HealthChecker) {
	if c == nil {
		return
	}
	h.checks[name] = c
}

// Register mounts the probe endpoints.
func (h *HealthHandler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleLiveness)
	r.Get("/readyz", h.HandleReadiness)
}

// HandleLiveness handles GET /healthz. Always healthy while the process
// serves requests.
func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleReadiness handles GET /readyz, probing each registered dependency.
func (h *HealthHandler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	overall := "ok"
	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check.Health(ctx); err != nil {
			deps[name] = "unhealthy"
			overall = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	httputil.WriteJSON(w, status, map[string]any{
		"status":       overall,
		"dependencies": deps,
	})
}
