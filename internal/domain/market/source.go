package market

import (
	"context"
)

// PriceSource provides spot quotes and daily price history.
// Implementations return errors wrapping errors.ErrNotFound for unknown
// symbols and errors.ErrUnavailable when the upstream cannot be reached.
type PriceSource interface {
	GetPrice(ctx context.Context, symbol string) (Quote, error)
	GetHistory(ctx context.Context, symbol string, r Range) ([]PricePoint, error)
}

// HistoryRepository persists daily closes (ClickHouse in production)
type HistoryRepository interface {
	InsertPoints(ctx context.Context, symbol string, points []PricePoint) error
	GetPoints(ctx context.Context, symbol string, r Range) ([]PricePoint, error)
}
