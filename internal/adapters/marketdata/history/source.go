package history

import (
	"context"
	"time"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/logger"
)

// Source serves history from a HistoryRepository and backfills it from the
// upstream source when the stored window is incomplete. Quotes pass through.
type Source struct {
	upstream market.PriceSource
	repo     market.HistoryRepository
	log      *logger.Logger
}

func New(upstream market.PriceSource, repo market.HistoryRepository) *Source {
	return &Source{
		upstream: upstream,
		repo:     repo,
		log:      logger.Get().With("component", "price_history"),
	}
}

func (s *Source) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	return s.upstream.GetPrice(ctx, symbol)
}

func (s *Source) GetHistory(ctx context.Context, symbol string, r market.Range) ([]market.PricePoint, error) {
	symbol = market.NormalizeSymbol(symbol)
	if r.End.IsZero() {
		r.End = time.Now().UTC().Truncate(24 * time.Hour)
	}

	stored, err := s.repo.GetPoints(ctx, symbol, r)
	if err != nil {
		s.log.Warnw("History store read failed, using upstream", "symbol", symbol, "error", err)
	} else if len(stored) >= r.Days {
		return stored, nil
	}

	points, err := s.upstream.GetHistory(ctx, symbol, r)
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertPoints(ctx, symbol, points); err != nil {
		s.log.Warnw("History backfill failed", "symbol", symbol, "points", len(points), "error", err)
	} else {
		s.log.Debugw("History backfilled", "symbol", symbol, "points", len(points))
	}
	return points, nil
}
