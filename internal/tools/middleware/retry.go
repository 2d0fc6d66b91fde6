package middleware

import (
	"context"
	"time"

	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// RetryMiddleware retries tool execution on transient errors with exponential backoff.
type RetryMiddleware struct {
	Attempts  int
	Backoff   time.Duration
	Retryable func(error) bool // nil retries Unavailable, Timeout and RateLimited errors
}

// Transient reports whether err is worth retrying
func Transient(err error) bool {
	return errors.Is(err, errors.ErrUnavailable) ||
		errors.Is(err, errors.ErrTimeout) ||
		errors.Is(err, errors.ErrRateLimitExceeded)
}

// Wrap adds retry semantics to a tool. The final error from the last attempt is returned.
// Tools with side effects are returned unchanged.
func (m RetryMiddleware) Wrap(t tools.Tool) tools.Tool {
	attempts := m.Attempts
	if attempts <= 1 || t.Schema().HasSideEffects {
		return t
	}

	retryable := m.Retryable
	if retryable == nil {
		retryable = Transient
	}

	return tools.New(t.Schema(), func(ctx context.Context, args tools.Args) (any, error) {
		var result any
		var err error
		backoff := m.Backoff

		for i := 0; i < attempts; i++ {
			result, err = t.Execute(ctx, args)
			if err == nil || !retryable(err) {
				return result, err
			}

			if i < attempts-1 && backoff > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				backoff *= 2
			}
		}

		return result, err
	})
}
