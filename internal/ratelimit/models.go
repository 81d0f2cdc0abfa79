// Package ratelimit provides sliding-window admission counters keyed by
// arbitrary strings. FraudGuard checks one key per voter ID and one per IP
// fingerprint, each with its own threshold.
package ratelimit

import (
	"context"
	"time"
)

// Result reports the outcome of one rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// BucketStore records vote actions and enforces a sliding window.
//
// Allow must be atomic per key: under concurrent bursts the counter may
// undercount only within a bounded slack, and must never overcount; a rate
// limiter that blocks legitimate voters is worse than one that admits a small
// overshoot. Both implementations here are exact.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}
