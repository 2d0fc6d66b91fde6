package strategy

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/pkg/errors"
)

func staticPrices(prices map[string]string) PriceLookup {
	return func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		p, ok := prices[symbol]
		if !ok {
			return decimal.Zero, errors.Wrapf(errors.ErrUnavailable, "no price for %s", symbol)
		}
		return d(p), nil
	}
}

func TestEvaluate(t *testing.T) {
	p := Portfolio{ID: "default", Positions: []Position{
		{Symbol: "BTC", Quantity: d("0.5"), CostBasis: d("20000")},
		{Symbol: "ETH", Quantity: d("2"), CostBasis: d("8000")},
		{Symbol: "SOL", Quantity: d("10"), CostBasis: d("1000")},
	}}
	before := p.Clone()

	report, err := NewTracker().Evaluate(context.Background(), p, staticPrices(map[string]string{
		"BTC": "60000",
		"ETH": "3000",
		"SOL": "100",
	}))
	require.NoError(t, err)

	assert.True(t, report.TotalCost.Equal(d("29000")))
	assert.True(t, report.TotalValue.Equal(d("37000")))
	assert.True(t, report.TotalPnL.Equal(d("8000")))

	btc := report.Positions[0]
	assert.True(t, btc.Value.Equal(d("30000")))
	assert.True(t, btc.PnL.Equal(d("10000")))
	assert.True(t, btc.ReturnPct.Equal(d("50")), btc.ReturnPct.String())

	eth := report.Positions[1]
	assert.True(t, eth.PnL.Equal(d("-2000")))
	assert.True(t, eth.ReturnPct.Equal(d("-25")), eth.ReturnPct.String())

	sum := decimal.Zero
	for _, pos := range report.Positions {
		sum = sum.Add(pos.Allocation)
	}
	assert.True(t, sum.Equal(d("1")), sum.String())
	assert.Equal(t, before, p)
}

func TestEvaluate_Unpriced(t *testing.T) {
	p := Portfolio{ID: "x", Positions: []Position{
		{Symbol: "BTC", Quantity: d("1"), CostBasis: d("50000")},
		{Symbol: "MYSTERY", Quantity: d("100"), CostBasis: d("10")},
	}}

	report, err := NewTracker().Evaluate(context.Background(), p, staticPrices(map[string]string{"BTC": "60000"}))
	require.NoError(t, err)

	assert.Equal(t, []string{"MYSTERY"}, report.Unpriced)
	assert.False(t, report.Positions[1].Priced)
	assert.Equal(t, errors.CodeUnavailable, report.Positions[1].PriceError)
	assert.True(t, report.Positions[1].Value.IsZero())
	assert.True(t, report.Positions[1].Allocation.IsZero())
	assert.True(t, report.Positions[0].Allocation.Equal(d("1")))
}

func TestEvaluate_ZeroValueAndZeroCost(t *testing.T) {
	p := Portfolio{ID: "gift", Positions: []Position{
		{Symbol: "DOGE", Quantity: d("0"), CostBasis: d("0")},
	}}

	report, err := NewTracker().Evaluate(context.Background(), p, staticPrices(map[string]string{"DOGE": "0.38"}))
	require.NoError(t, err)

	assert.True(t, report.Positions[0].Allocation.IsZero())
	assert.True(t, report.Positions[0].ReturnPct.IsZero())
	assert.True(t, report.ReturnPct.IsZero())
}

func TestEvaluate_NegativeQuantity(t *testing.T) {
	p := Portfolio{ID: "bad", Positions: []Position{{Symbol: "BTC", Quantity: d("-1")}}}

	_, err := NewTracker().Evaluate(context.Background(), p, staticPrices(nil))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestPortfolio_WithPosition(t *testing.T) {
	p := Portfolio{ID: "default"}

	p1, err := p.WithPosition(Position{Symbol: "btc", Quantity: d("0.1"), CostBasis: d("4000")})
	require.NoError(t, err)
	p2, err := p1.WithPosition(Position{Symbol: "BTC", Quantity: d("0.1"), CostBasis: d("6000")})
	require.NoError(t, err)

	assert.Empty(t, p.Positions)
	require.Len(t, p1.Positions, 1)
	assert.True(t, p1.Positions[0].Quantity.Equal(d("0.1")))
	require.Len(t, p2.Positions, 1)
	assert.True(t, p2.Positions[0].Quantity.Equal(d("0.2")))
	assert.True(t, p2.Positions[0].CostBasis.Equal(d("10000")))

	_, err = p.WithPosition(Position{Symbol: "ETH", Quantity: d("-1")})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestPortfolio_WithoutPosition(t *testing.T) {
	p := Portfolio{ID: "default", Positions: []Position{
		{Symbol: "BTC", Quantity: d("1"), CostBasis: d("1")},
		{Symbol: "ETH", Quantity: d("1"), CostBasis: d("1")},
	}}

	out, err := p.WithoutPosition("btc")
	require.NoError(t, err)
	assert.Len(t, out.Positions, 1)
	assert.Equal(t, "ETH", out.Positions[0].Symbol)
	assert.Len(t, p.Positions, 2)

	_, err = p.WithoutPosition("SOL")
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
