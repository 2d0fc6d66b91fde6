package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

func TestSource_GetPrice(t *testing.T) {
	src := New(nil)
	ctx := context.Background()

	q, err := src.GetPrice(ctx, "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", q.Symbol)
	assert.Equal(t, "Bitcoin", q.Name)
	assert.Equal(t, market.TierBlueChip, q.Tier)
	assert.Equal(t, "97500", q.Price.String())
	assert.Equal(t, SourceName, q.Source)

	_, err = src.GetPrice(ctx, "NOPE")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestSource_InjectedFailures(t *testing.T) {
	src := New(nil)
	ctx := context.Background()

	src.SetDown(true)
	_, err := src.GetPrice(ctx, "ETH")
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	_, err = src.GetHistory(ctx, "ETH", market.LastDays(5))
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
	src.SetDown(false)

	src.Fail("sol", errors.ErrTimeout)
	_, err = src.GetPrice(ctx, "SOL")
	assert.True(t, errors.Is(err, errors.ErrTimeout))
	src.Fail("SOL", nil)
	_, err = src.GetPrice(ctx, "SOL")
	assert.NoError(t, err)
}

func TestSource_GetHistoryDeterministic(t *testing.T) {
	src := New(nil)
	ctx := context.Background()
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)

	first, err := src.GetHistory(ctx, "DOGE", market.Range{Days: 30, End: end})
	require.NoError(t, err)
	second, err := src.GetHistory(ctx, "DOGE", market.Range{Days: 30, End: end})
	require.NoError(t, err)

	require.Len(t, first, 30)
	assert.Equal(t, first, second)
	assert.Equal(t, end, first[29].Timestamp)
	assert.Equal(t, end.AddDate(0, 0, -29), first[0].Timestamp)
	assert.Equal(t, "0.38", first[29].Price.String())

	for i := 1; i < len(first); i++ {
		assert.True(t, first[i].Timestamp.After(first[i-1].Timestamp))
		assert.True(t, first[i].Price.IsPositive())
	}
}

func TestSource_GetHistoryBounds(t *testing.T) {
	src := New(nil)
	for _, days := range []int{0, -1, MaxHistoryDays + 1} {
		_, err := src.GetHistory(context.Background(), "BTC", market.LastDays(days))
		assert.True(t, errors.Is(err, errors.ErrInvalidInput), days)
	}
}
