package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// Compile-time check
var _ market.HistoryRepository = (*PriceHistoryRepository)(nil)

// PriceHistoryRepository implements market.HistoryRepository using ClickHouse
type PriceHistoryRepository struct {
	conn   driver.Conn
	source string
}

// NewPriceHistoryRepository creates a repository tagging inserted rows with source
func NewPriceHistoryRepository(conn driver.Conn, source string) *PriceHistoryRepository {
	return &PriceHistoryRepository{conn: conn, source: source}
}

type priceRow struct {
	Day   time.Time `ch:"day"`
	Price float64   `ch:"price"`
}

// InsertPoints stores daily closes in one batch
func (r *PriceHistoryRepository) InsertPoints(ctx context.Context, symbol string, points []market.PricePoint) error {
	if len(points) == 0 {
		return nil
	}

	batch, err := r.conn.PrepareBatch(ctx, `INSERT INTO price_history (symbol, day, price, source)`)
	if err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "prepare price batch: %v", err)
	}

	symbol = market.NormalizeSymbol(symbol)
	for _, p := range points {
		day := p.Timestamp.UTC().Truncate(24 * time.Hour)
		if err := batch.Append(symbol, day, p.Price.InexactFloat64(), r.source); err != nil {
			return errors.Wrapf(err, "append %s %s", symbol, day.Format("2006-01-02"))
		}
	}

	if err := batch.Send(); err != nil {
		return errors.Wrapf(errors.ErrUnavailable, "send price batch: %v", err)
	}
	return nil
}

// GetPoints returns the stored closes of symbol inside r, oldest first
func (r *PriceHistoryRepository) GetPoints(ctx context.Context, symbol string, rng market.Range) ([]market.PricePoint, error) {
	var rows []priceRow

	query := `
		SELECT day, argMax(price, inserted_at) AS price
		FROM price_history
		WHERE symbol = ? AND day >= ? AND day <= ?
		GROUP BY day
		ORDER BY day ASC`

	err := r.conn.Select(ctx, &rows, query, market.NormalizeSymbol(symbol), rng.Start(), rng.End)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "select price history: %v", err)
	}

	out := make([]market.PricePoint, len(rows))
	for i, row := range rows {
		out[i] = market.PricePoint{
			Timestamp: row.Day.UTC(),
			Price:     decimal.NewFromFloat(row.Price),
		}
	}
	return out, nil
}

// Symbols lists symbols with stored history and their row counts
func (r *PriceHistoryRepository) Symbols(ctx context.Context) (map[string]uint64, error) {
	var rows []struct {
		Symbol string `ch:"symbol"`
		Count  uint64 `ch:"cnt"`
	}
	if err := r.conn.Select(ctx, &rows, `SELECT symbol, count() AS cnt FROM price_history GROUP BY symbol`); err != nil {
		return nil, errors.Wrapf(errors.ErrUnavailable, "count price history: %v", err)
	}

	out := make(map[string]uint64, len(rows))
	for _, row := range rows {
		out[row.Symbol] = row.Count
	}
	return out, nil
}
