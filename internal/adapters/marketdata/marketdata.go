package marketdata

import (
	"context"
	"time"

	"dcaadvisor/internal/adapters/config"
	"dcaadvisor/internal/adapters/marketdata/binance"
	"dcaadvisor/internal/adapters/marketdata/cache"
	"dcaadvisor/internal/adapters/marketdata/history"
	"dcaadvisor/internal/adapters/marketdata/mock"
	"dcaadvisor/internal/adapters/marketdata/ratelimit"
	redisadapter "dcaadvisor/internal/adapters/redis"
	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/metrics"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// Deps are the optional stores a price source stack can use
type Deps struct {
	Catalog *market.Catalog
	Redis   *redisadapter.Client     // quote and history cache
	History market.HistoryRepository // persistent daily closes
}

// New assembles the configured price source:
// upstream -> metrics -> rate limit -> history store -> cache.
func New(cfg config.MarketConfig, deps Deps) (market.PriceSource, error) {
	log := logger.Get().With("component", "market_data")

	var (
		src  market.PriceSource
		name = cfg.Source
	)
	switch cfg.Source {
	case "", mock.SourceName:
		name = mock.SourceName
		src = mock.New(deps.Catalog)
	case binance.SourceName:
		src = binance.New(binance.Config{
			BaseURL:    cfg.BinanceURL,
			QuoteAsset: cfg.QuoteAsset,
			Timeout:    cfg.RequestTimeout,
			Catalog:    deps.Catalog,
		})
	default:
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unsupported market source: %s", cfg.Source)
	}

	src = Instrument(name, src)
	if cfg.RequestsPerSec > 0 {
		src = ratelimit.New(name, src, cfg.RequestsPerSec, cfg.Burst)
	}
	if deps.History != nil {
		src = history.New(src, deps.History)
	}
	if deps.Redis != nil {
		src = cache.New(src, deps.Redis, cfg.QuoteCacheTTL, cfg.HistoryTTL)
	}

	log.Infow("Price source ready",
		"source", name,
		"rate_limited", cfg.RequestsPerSec > 0,
		"history_store", deps.History != nil,
		"cache", deps.Redis != nil,
	)
	return src, nil
}

type instrumented struct {
	name     string
	upstream market.PriceSource
}

// Instrument records latency and outcome of every call in Prometheus
func Instrument(name string, src market.PriceSource) market.PriceSource {
	return &instrumented{name: name, upstream: src}
}

func (i *instrumented) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	start := time.Now()
	q, err := i.upstream.GetPrice(ctx, symbol)
	metrics.RecordPriceRequest(i.name, "price", time.Since(start), reason(err))
	return q, err
}

func (i *instrumented) GetHistory(ctx context.Context, symbol string, r market.Range) ([]market.PricePoint, error) {
	start := time.Now()
	points, err := i.upstream.GetHistory(ctx, symbol, r)
	metrics.RecordPriceRequest(i.name, "history", time.Since(start), reason(err))
	return points, err
}

func reason(err error) string {
	if err == nil {
		return ""
	}
	return errors.Code(err)
}
