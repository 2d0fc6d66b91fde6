package mock

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// SourceName identifies quotes produced by this package
const SourceName = "mock"

// MaxHistoryDays bounds a single history request
const MaxHistoryDays = 1000

// daily swing amplitude of the synthetic walk per tier
var tierSwing = map[market.Tier]float64{
	market.TierBlueChip:    0.02,
	market.TierLargeCap:    0.035,
	market.TierMidCap:      0.05,
	market.TierSpeculative: 0.08,
}

// Source serves the catalog reference prices and a deterministic synthetic
// daily history. Failures can be injected per symbol or for the whole source.
type Source struct {
	catalog *market.Catalog
	now     func() time.Time

	mu       sync.RWMutex
	down     bool
	failures map[string]error
}

// New creates a mock source over catalog; nil uses market.DefaultCatalog
func New(catalog *market.Catalog) *Source {
	if catalog == nil {
		catalog = market.DefaultCatalog()
	}
	return &Source{
		catalog:  catalog,
		now:      func() time.Time { return time.Now().UTC() },
		failures: make(map[string]error),
	}
}

// SetDown makes every call fail with errors.ErrUnavailable while down is true
func (s *Source) SetDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = down
}

// Fail makes calls for symbol return err; a nil err clears the failure
func (s *Source) Fail(symbol string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbol = market.NormalizeSymbol(symbol)
	if err == nil {
		delete(s.failures, symbol)
		return
	}
	s.failures[symbol] = err
}

func (s *Source) check(symbol string) (market.Listing, error) {
	s.mu.RLock()
	down := s.down
	injected := s.failures[symbol]
	s.mu.RUnlock()

	if down {
		return market.Listing{}, errors.Wrap(errors.ErrUnavailable, "mock exchange is down")
	}
	if injected != nil {
		return market.Listing{}, injected
	}
	listing, ok := s.catalog.Lookup(symbol)
	if !ok {
		return market.Listing{}, errors.Wrapf(errors.ErrNotFound, "symbol %s", symbol)
	}
	return listing, nil
}

func (s *Source) GetPrice(ctx context.Context, symbol string) (market.Quote, error) {
	if err := ctx.Err(); err != nil {
		return market.Quote{}, err
	}
	symbol = market.NormalizeSymbol(symbol)
	listing, err := s.check(symbol)
	if err != nil {
		return market.Quote{}, err
	}
	return market.Quote{
		Symbol:    listing.Symbol,
		Name:      listing.Name,
		Tier:      listing.Tier,
		Price:     listing.RefPrice,
		Change24h: listing.Change24h,
		Volume24h: listing.Volume24h,
		Timestamp: s.now(),
		Source:    SourceName,
	}, nil
}

// GetHistory walks backwards from the reference price on the range end day.
// The return on a given day depends only on the symbol and the date, so
// overlapping ranges agree on shape.
func (s *Source) GetHistory(ctx context.Context, symbol string, r market.Range) ([]market.PricePoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.Days <= 0 || r.Days > MaxHistoryDays {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "days must be between 1 and %d, got %d", MaxHistoryDays, r.Days)
	}
	symbol = market.NormalizeSymbol(symbol)
	listing, err := s.check(symbol)
	if err != nil {
		return nil, err
	}

	end := r.End
	if end.IsZero() {
		end = s.now()
	}
	end = end.UTC().Truncate(24 * time.Hour)
	swing := tierSwing[listing.Tier]

	points := make([]market.PricePoint, r.Days)
	price := listing.RefPrice.InexactFloat64()
	for i := r.Days - 1; i >= 0; i-- {
		day := end.AddDate(0, 0, i-(r.Days-1))
		points[i] = market.PricePoint{
			Timestamp: day,
			Price:     decimal.NewFromFloat(price).Round(8),
		}
		price /= 1 + swing*unit(symbol, day)
	}
	return points, nil
}

// unit maps (symbol, day) to a stable value in [-1, 1]
func unit(symbol string, day time.Time) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	_, _ = h.Write([]byte(day.Format("2006-01-02")))
	return float64(h.Sum64()%2001)/1000 - 1
}
