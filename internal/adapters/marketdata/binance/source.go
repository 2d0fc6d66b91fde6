package binance

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

const (
	SourceName     = "binance"
	defaultBaseURL = "https://api.binance.com"
	defaultTimeout = 10 * time.Second
	maxKlines      = 1000
	invalidSymbol  = -1121
)

// Config configures the public Binance spot API client
type Config struct {
	BaseURL    string
	QuoteAsset string // appended to every symbol, e.g. USDT
	Timeout    time.Duration
	Catalog    *market.Catalog
}

// Source reads spot tickers and daily klines from the public Binance REST API.
// No API key is required.
type Source struct {
	client  *resty.Client
	quote   string
	catalog *market.Catalog
	log     *logger.Logger
}

func New(cfg Config) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.QuoteAsset == "" {
		cfg.QuoteAsset = "USDT"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Catalog == nil {
		cfg.Catalog = market.DefaultCatalog()
	}

	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("Accept", "application/json")

	return &Source{
		client:  client,
		quote:   market.NormalizeSymbol(cfg.QuoteAsset),
		catalog: cfg.Catalog,
		log:     logger.Get().With("component", "binance_source"),
	}
}

func (s *Source) pair(symbol string) string {
	return symbol + s.quote
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (s *Source) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(errors.ErrUnavailable, "binance %s: %v", path, err)
	}

	switch status := resp.StatusCode(); {
	case status == http.StatusOK:
		return resp.Body(), nil
	case status == http.StatusTooManyRequests || status == http.StatusTeapot:
		return nil, errors.Wrapf(errors.ErrRateLimitExceeded, "binance %s: status %d", path, status)
	case status >= 500:
		return nil, errors.Wrapf(errors.ErrUnavailable, "binance %s: status %d", path, status)
	default:
		var apiErr apiError
		_ = json.Unmarshal(resp.Body(), &apiErr)
		if apiErr.Code == invalidSymbol {
			return nil, errors.Wrapf(errors.ErrNotFound, "symbol %s", params["symbol"])
		}
		return nil, errors.Wrapf(errors.ErrExternal, "binance %s: status %d: %s", path, status, apiErr.Msg)
	}
}

type ticker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChangePercent string `json:"priceChangePercent"`
	CloseTime          int64  `json:"closeTime"`
}

func (s *Source) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	symbol = market.NormalizeSymbol(symbol)
	if symbol == "" {
		return market.Quote{}, errors.Wrap(errors.ErrInvalidInput, "empty symbol")
	}

	body, err := s.get(ctx, "/api/v3/ticker/24hr", map[string]string{"symbol": s.pair(symbol)})
	if err != nil {
		return market.Quote{}, err
	}

	var t ticker
	if err := json.Unmarshal(body, &t); err != nil {
		return market.Quote{}, errors.Wrapf(errors.ErrExternal, "decode ticker %s: %v", symbol, err)
	}
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return market.Quote{}, errors.Wrapf(errors.ErrExternal, "ticker %s price %q", symbol, t.LastPrice)
	}

	name, tier := symbol, market.TierSpeculative
	if listing, ok := s.catalog.Lookup(symbol); ok {
		name, tier = listing.Name, listing.Tier
	}

	return market.Quote{
		Symbol:    symbol,
		Name:      name,
		Tier:      tier,
		Price:     price,
		Change24h: parseDecimal(t.PriceChangePercent),
		Volume24h: parseDecimal(t.QuoteVolume),
		Timestamp: time.UnixMilli(t.CloseTime).UTC(),
		Source:    SourceName,
	}, nil
}

// GetHistory returns daily closes between r.Start() and r.End
func (s *Source) GetHistory(ctx context.Context, symbol string, r market.Range) ([]market.PricePoint, error) {
	symbol = market.NormalizeSymbol(symbol)
	if r.Days <= 0 || r.Days > maxKlines {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "days must be between 1 and %d, got %d", maxKlines, r.Days)
	}
	if r.End.IsZero() {
		r.End = time.Now().UTC().Truncate(24 * time.Hour)
	}
	start := r.Start()
	end := r.End.AddDate(0, 0, 1).Add(-time.Millisecond)

	body, err := s.get(ctx, "/api/v3/klines", map[string]string{
		"symbol":    s.pair(symbol),
		"interval":  "1d",
		"startTime": strconv.FormatInt(start.UnixMilli(), 10),
		"endTime":   strconv.FormatInt(end.UnixMilli(), 10),
		"limit":     strconv.Itoa(r.Days),
	})
	if err != nil {
		return nil, err
	}

	// each kline is [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, errors.Wrapf(errors.ErrExternal, "decode klines %s: %v", symbol, err)
	}

	points := make([]market.PricePoint, 0, len(rows))
	for _, row := range rows {
		if len(row) < 5 {
			continue
		}
		var openTime int64
		var closeStr string
		if err := json.Unmarshal(row[0], &openTime); err != nil {
			continue
		}
		if err := json.Unmarshal(row[4], &closeStr); err != nil {
			continue
		}
		price, err := decimal.NewFromString(closeStr)
		if err != nil {
			continue
		}
		points = append(points, market.PricePoint{
			Timestamp: time.UnixMilli(openTime).UTC().Truncate(24 * time.Hour),
			Price:     price,
		})
	}

	if len(points) < len(rows) {
		s.log.Warnw("Skipped malformed klines", "symbol", symbol, "rows", len(rows), "parsed", len(points))
	}
	return points, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
