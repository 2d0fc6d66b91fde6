package strategy

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

func series(prices ...float64) []market.PricePoint {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.PricePoint, len(prices))
	for i, p := range prices {
		out[i] = market.PricePoint{Timestamp: start.AddDate(0, 0, i), Price: decimal.NewFromFloat(p)}
	}
	return out
}

func TestAnalyze_VolatilityAndDrawdown(t *testing.T) {
	analyzer := NewRiskAnalyzer(DefaultRiskThresholds())

	report, err := analyzer.Analyze(series(100, 110, 99, 120, 60))
	require.NoError(t, err)

	// returns: +0.10, -0.10, +0.2121..., -0.5
	rets := []float64{0.1, -0.1, 21.0 / 99.0, -0.5}
	var mean, sq float64
	for _, r := range rets {
		mean += r
	}
	mean /= 4
	for _, r := range rets {
		sq += (r - mean) * (r - mean)
	}
	want := math.Sqrt(sq / 4)

	assert.InDelta(t, want, report.Volatility, 1e-9)
	assert.InDelta(t, 0.5, report.MaxDrawdown, 1e-12)
	assert.Equal(t, RiskExtreme, report.Tier)
	assert.Equal(t, 5, report.SampleSize)
}

func TestAnalyze_Tiers(t *testing.T) {
	analyzer := NewRiskAnalyzer(DefaultRiskThresholds())

	tests := []struct {
		name   string
		prices []float64
		want   RiskTier
	}{
		{"flat", []float64{100, 100, 100}, RiskUnknown},
		{"calm", []float64{100, 101, 100, 101, 100}, RiskLow},
		{"choppy", []float64{100, 104, 100, 104, 100}, RiskModerate},
		{"drawdown dominates", []float64{100, 95, 89, 85, 80, 76, 72, 68, 64, 60}, RiskModerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := analyzer.Analyze(series(tt.prices...))
			require.NoError(t, err)
			assert.Equal(t, tt.want, report.Tier)
			assert.GreaterOrEqual(t, report.Volatility, 0.0)
			assert.GreaterOrEqual(t, report.MaxDrawdown, 0.0)
			assert.LessOrEqual(t, report.MaxDrawdown, 1.0)
		})
	}
}

func TestAnalyze_TwoPoints(t *testing.T) {
	report, err := NewRiskAnalyzer(DefaultRiskThresholds()).Analyze(series(100, 90))
	require.NoError(t, err)

	assert.Equal(t, 0.0, report.Volatility)
	assert.InDelta(t, 0.1, report.MaxDrawdown, 1e-12)
	assert.Equal(t, RiskUnknown, report.Tier)
}

func TestAnalyze_Errors(t *testing.T) {
	analyzer := NewRiskAnalyzer(DefaultRiskThresholds())

	_, err := analyzer.Analyze(series(100))
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))

	_, err = analyzer.Analyze(nil)
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))

	s := series(100, 101, 102)
	s[1], s[2] = s[2], s[1]
	_, err = analyzer.Analyze(s)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestCompareBasket(t *testing.T) {
	analyzer := NewRiskAnalyzer(DefaultRiskThresholds())

	cmp, err := analyzer.CompareBasket(map[string][]market.PricePoint{
		"AAA": series(50, 100, 110, 100, 110, 100),
		"BBB": series(100, 90, 100, 90, 100),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"AAA", "BBB"}, cmp.Assets)
	assert.Equal(t, 4, cmp.Periods)
	// opposite swings cancel in the basket
	assert.Less(t, cmp.BasketVolatility, cmp.AvgAssetVolatility)
	assert.Less(t, cmp.BasketDrawdown, cmp.WorstAssetDrawdown)
	assert.Greater(t, cmp.VolatilityReduction, 0.0)
	assert.Equal(t, 5, cmp.PerAsset["AAA"].SampleSize)
}

func TestCompareBasket_Errors(t *testing.T) {
	analyzer := NewRiskAnalyzer(DefaultRiskThresholds())

	_, err := analyzer.CompareBasket(nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = analyzer.CompareBasket(map[string][]market.PricePoint{"AAA": series(1)})
	assert.True(t, errors.Is(err, errors.ErrInsufficientData))
}

func TestThresholdsFromSlices(t *testing.T) {
	th, err := ThresholdsFromSlices([]float64{0.01, 0.02, 0.03}, []float64{0.1, 0.2, 0.3})
	require.NoError(t, err)
	assert.Equal(t, 0.02, th.Volatility[1])

	_, err = ThresholdsFromSlices([]float64{0.05, 0.02, 0.03}, []float64{0.1, 0.2, 0.3})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
