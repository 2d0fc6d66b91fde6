package ratelimit

import (
	"context"

	"golang.org/x/time/rate"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// Source throttles calls to another price source with a token bucket
type Source struct {
	upstream market.PriceSource
	limiter  *rate.Limiter
	name     string
}

// New allows perSecond requests with the given burst; burst < 1 becomes 1
func New(name string, upstream market.PriceSource, perSecond float64, burst int) *Source {
	if burst < 1 {
		burst = 1
	}
	return &Source{
		upstream: upstream,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), burst),
		name:     name,
	}
}

func (s *Source) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.Wrapf(errors.ErrRateLimitExceeded, "rate limiter %s: %v", s.name, err)
	}
	return nil
}

func (s *Source) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	if err := s.wait(ctx); err != nil {
		return market.Quote{}, err
	}
	return s.upstream.GetPrice(ctx, symbol)
}

func (s *Source) GetHistory(ctx context.Context, symbol string, r market.Range) ([]market.PricePoint, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	return s.upstream.GetHistory(ctx, symbol, r)
}
