// Package requestcontext provides HTTP-independent accessors for
// request-scoped values.
//
// Middleware sets these; services read them without importing net/http.
// requestcontext.Now is the injectable wall-clock: admission checks and the
// competition state machine consume it so tests can pin time.
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	clientIPKey    struct{}
	requestTimeKey struct{}
	organizerKey   struct{}
)

// RequestID retrieves the request ID from the context, or "" if unset.
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// ClientIP retrieves the client IP address from the context, or "" if unset.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// WithClientIP injects the client IP into the context.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, scheduler, tests
// that don't pin time).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Used by the request-time
// middleware and by tests that need a fixed clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}

// Organizer retrieves the authenticated organizer subject, or "" if unset.
func Organizer(ctx context.Context) string {
	if sub, ok := ctx.Value(organizerKey{}).(string); ok {
		return sub
	}
	return ""
}

// WithOrganizer injects the authenticated organizer subject into the context.
func WithOrganizer(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, organizerKey{}, subject)
}
