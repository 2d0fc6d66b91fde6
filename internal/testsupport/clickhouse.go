package testsupport

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dcaadvisor/internal/adapters/clickhouse"
	"dcaadvisor/internal/domain/market"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewTestClickHouse connects, migrates and returns a helper; tests skip without configuration.
func NewTestClickHouse(t *testing.T) *ClickHouseTestHelper {
	t.Helper()

	client, err := clickhouse.NewClient(ClickHouseConfigFromEnv(t))
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}
	if err := client.Migrate(context.Background()); err != nil {
		_ = client.Close()
		t.Fatalf("failed to migrate clickhouse: %v", err)
	}

	t.Cleanup(func() { _ = client.Close() })
	return &ClickHouseTestHelper{client: client}
}

// Client exposes the raw ClickHouse client for queries.
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// RegisterSymbolCleanup removes the price history of symbols after the test
func (h *ClickHouseTestHelper) RegisterSymbolCleanup(t *testing.T, symbols ...string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, s := range symbols {
			_ = h.client.Exec(ctx, "DELETE FROM price_history WHERE symbol = ?", s)
		}
	})
}

// DailySeries builds a chronological daily series ending on end (truncated to the day)
func DailySeries(end time.Time, prices ...float64) []market.PricePoint {
	end = end.UTC().Truncate(24 * time.Hour)
	out := make([]market.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = market.PricePoint{
			Timestamp: end.AddDate(0, 0, i-len(prices)+1),
			Price:     decimal.NewFromFloat(p),
		}
	}
	return out
}
