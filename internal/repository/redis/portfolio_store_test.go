package redis

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/internal/testsupport"
	"dcaadvisor/pkg/errors"
)

func TestPortfolioStore_RoundTrip(t *testing.T) {
	store := NewPortfolioStore(testsupport.NewTestRedis(t), 0)
	ctx := context.Background()

	_, err := store.Get(ctx, "default")
	assert.True(t, errors.Is(err, errors.ErrNotFound))

	p, err := strategy.Portfolio{ID: "default"}.WithPosition(strategy.Position{
		Symbol:    "ETH",
		Quantity:  decimal.RequireFromString("2"),
		CostBasis: decimal.RequireFromString("6000"),
	})
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, p))

	got, err := store.Get(ctx, "default")
	require.NoError(t, err)
	require.Len(t, got.Positions, 1)
	assert.True(t, got.Positions[0].Quantity.Equal(decimal.RequireFromString("2")))
	assert.True(t, got.Positions[0].CostBasis.Equal(decimal.RequireFromString("6000")))

	require.NoError(t, store.Delete(ctx, "default"))
	_, err = store.Get(ctx, "default")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
