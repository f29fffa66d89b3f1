// Package ratelimit throttles inbound requests per client.
//
// MemoryLimiter keeps one token bucket per key in process memory, which is
// enough for a single API instance. Anything shared across instances only
// has to satisfy Limiter.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int           // bucket capacity
	Remaining int           // whole tokens left after this call
	RetryIn   time.Duration // time until the next token, zero when allowed
}

// Limiter decides whether a request identified by key should be allowed.
// Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow consumes one unit for key. An error signals a limiter
	// malfunction; callers fail open and let the request through.
	Allow(ctx context.Context, key string) (Decision, error)

	// Close releases background resources.
	Close() error
}

// NoopLimiter permits every request. Used when rate limiting is disabled.
type NoopLimiter struct{}

// Allow always allows.
func (NoopLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{Allowed: true}, nil
}

// Close is a no-op.
func (NoopLimiter) Close() error { return nil }
