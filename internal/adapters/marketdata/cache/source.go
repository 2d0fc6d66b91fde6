package cache

import (
	"context"
	"fmt"
	"time"

	redisadapter "dcaadvisor/internal/adapters/redis"
	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/metrics"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// Source is a Redis read-through cache in front of another price source.
// Cache failures are logged and fall through to the upstream source.
type Source struct {
	upstream   market.PriceSource
	client     *redisadapter.Client
	quoteTTL   time.Duration
	historyTTL time.Duration
	log        *logger.Logger
}

func New(upstream market.PriceSource, client *redisadapter.Client, quoteTTL, historyTTL time.Duration) *Source {
	return &Source{
		upstream:   upstream,
		client:     client,
		quoteTTL:   quoteTTL,
		historyTTL: historyTTL,
		log:        logger.Get().With("component", "price_cache"),
	}
}

func quoteKey(symbol string) string {
	return "quote:" + symbol
}

func historyKey(symbol string, r market.Range) string {
	return fmt.Sprintf("history:%s:%d:%s", symbol, r.Days, r.End.UTC().Format("2006-01-02"))
}

func (s *Source) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = market.NormalizeSymbol(symbol)
	key := quoteKey(symbol)

	var q market.Quote
	if s.lookup(ctx, "quote", key, &q) {
		return q, nil
	}

	q, err := s.upstream.GetPrice(ctx, symbol)
	if err != nil {
		return market.Quote{}, err
	}
	s.store(ctx, key, q, s.quoteTTL)
	return q, nil
}

func (s *Source) GetHistory(ctx context.Context, symbol string, r market.Range) ([]market.PricePoint, error) {
	symbol = market.NormalizeSymbol(symbol)
	if r.End.IsZero() {
		r.End = time.Now().UTC().Truncate(24 * time.Hour)
	}
	key := historyKey(symbol, r)

	var points []market.PricePoint
	if s.lookup(ctx, "history", key, &points) {
		return points, nil
	}

	points, err := s.upstream.GetHistory(ctx, symbol, r)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, points, s.historyTTL)
	return points, nil
}

func (s *Source) lookup(ctx context.Context, kind, key string, dest any) bool {
	err := s.client.Get(ctx, key, dest)
	switch {
	case err == nil:
		metrics.RecordCacheLookup(kind, "hit")
		return true
	case errors.Is(err, errors.ErrNotFound):
		metrics.RecordCacheLookup(kind, "miss")
	default:
		metrics.RecordCacheLookup(kind, "error")
		s.log.Warnw("Cache read failed", "key", key, "error", err)
	}
	return false
}

func (s *Source) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if err := s.client.Set(ctx, key, value, ttl); err != nil {
		s.log.Warnw("Cache write failed", "key", key, "error", err)
	}
}
