package ai

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"dcaadvisor/pkg/errors"
)

// RateLimiter defines the interface for rate limiting AI provider requests.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Allow checks if request can proceed without blocking.
	Allow() bool

	// Limit returns current rate limit (requests per minute).
	Limit() float64
}

// TokenBucketLimiter is a per-provider token bucket.
type TokenBucketLimiter struct {
	limiter  *rate.Limiter
	perMin   float64
	provider string
}

// NewTokenBucketLimiter allows reqPerMinute requests with the given burst.
// A non-positive burst defaults to a tenth of the per-minute rate, at least 1.
func NewTokenBucketLimiter(provider string, reqPerMinute float64, burst int) *TokenBucketLimiter {
	if burst <= 0 {
		burst = int(reqPerMinute / 10)
		if burst < 1 {
			burst = 1
		}
	}

	return &TokenBucketLimiter{
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), burst),
		perMin:   reqPerMinute,
		provider: provider,
	}
}

// Wait blocks until a token is available or ctx ends.
func (l *TokenBucketLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "rate limiter wait cancelled for provider %s", l.provider)
		}
		return &RateLimitError{Provider: l.provider, Limit: l.perMin, Err: err}
	}
	return nil
}

// Allow consumes a token if one is available.
func (l *TokenBucketLimiter) Allow() bool {
	return l.limiter.Allow()
}

// Limit returns the rate in requests per minute.
func (l *TokenBucketLimiter) Limit() float64 {
	return l.perMin
}

// NoOpLimiter never blocks.
type NoOpLimiter struct{}

// NewNoOpLimiter creates a no-op rate limiter.
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

func (l *NoOpLimiter) Wait(ctx context.Context) error { return nil }
func (l *NoOpLimiter) Allow() bool                    { return true }

// Limit returns -1 to indicate unlimited.
func (l *NoOpLimiter) Limit() float64 { return -1 }

// NewRateLimiter returns a token bucket for positive limits and a no-op limiter otherwise.
func NewRateLimiter(provider string, reqPerMinute int) RateLimiter {
	if reqPerMinute <= 0 {
		return NewNoOpLimiter()
	}
	return NewTokenBucketLimiter(provider, float64(reqPerMinute), 0)
}

// RateLimitError is returned when the limiter cannot grant a token in time.
type RateLimitError struct {
	Provider string
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit for %s (%.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

// Unwrap lets callers match the rate limit sentinel.
func (e *RateLimitError) Unwrap() []error {
	return []error{errors.ErrRateLimitExceeded, e.Err}
}

func waitLimiter(ctx context.Context, l RateLimiter) error {
	if l == nil {
		return nil
	}
	return l.Wait(ctx)
}
