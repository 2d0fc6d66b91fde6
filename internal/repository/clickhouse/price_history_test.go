package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/testsupport"
)

func TestPriceHistoryRepository_InsertAndGet(t *testing.T) {
	helper := testsupport.NewTestClickHouse(t)
	helper.RegisterSymbolCleanup(t, "TESTCOIN")

	repo := NewPriceHistoryRepository(helper.Client().Conn(), "test")
	ctx := context.Background()

	end := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	series := testsupport.DailySeries(end, 10, 11, 12, 13, 14)

	require.NoError(t, repo.InsertPoints(ctx, "testcoin", series))
	require.NoError(t, repo.InsertPoints(ctx, "TESTCOIN", nil))

	t.Run("window", func(t *testing.T) {
		points, err := repo.GetPoints(ctx, "TESTCOIN", market.Range{Days: 3, End: end})
		require.NoError(t, err)
		require.Len(t, points, 3)
		assert.Equal(t, 12.0, points[0].Price.InexactFloat64())
		assert.True(t, points[2].Timestamp.Equal(end))
	})

	t.Run("counts", func(t *testing.T) {
		counts, err := repo.Symbols(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, counts["TESTCOIN"], uint64(5))
	})
}
