// Package requesttime pins one "now" per HTTP request.
//
// Every admission check and domain timestamp inside a request observes the
// same instant, so a vote arriving at the window boundary cannot be judged
// open by one check and closed by another.
package requesttime

import (
	"net/http"
	"time"

	"stagevote/pkg/requestcontext"
)

// Middleware captures the current time at the start of the request and
// stores it in the context.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
