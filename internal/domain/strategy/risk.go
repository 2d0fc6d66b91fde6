package strategy

import (
	"sort"

	"github.com/markcheno/go-talib"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// RiskTier classifies an asset's historical behaviour
type RiskTier string

const (
	RiskUnknown  RiskTier = "unknown"
	RiskLow      RiskTier = "low"
	RiskModerate RiskTier = "moderate"
	RiskHigh     RiskTier = "high"
	RiskExtreme  RiskTier = "extreme"
)

var riskLadder = []RiskTier{RiskLow, RiskModerate, RiskHigh, RiskExtreme}

func (t RiskTier) level() int {
	for i, r := range riskLadder {
		if r == t {
			return i
		}
	}
	return -1
}

// RiskThresholds are the upper bounds of the low, moderate and high bands.
// A value at or above the last bound is extreme.
type RiskThresholds struct {
	Volatility [3]float64 // per-period standard deviation of returns
	Drawdown   [3]float64 // peak-to-trough fraction
}

// DefaultRiskThresholds returns the built-in bands for daily series
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{
		Volatility: [3]float64{0.03, 0.05, 0.08},
		Drawdown:   [3]float64{0.30, 0.50, 0.75},
	}
}

// ThresholdsFromSlices builds thresholds from configuration lists
func ThresholdsFromSlices(volatility, drawdown []float64) (RiskThresholds, error) {
	var t RiskThresholds
	if len(volatility) != 3 || len(drawdown) != 3 {
		return t, errors.Wrap(errors.ErrInvalidInput, "risk thresholds need three bands each")
	}
	copy(t.Volatility[:], volatility)
	copy(t.Drawdown[:], drawdown)
	for i := 1; i < 3; i++ {
		if t.Volatility[i] < t.Volatility[i-1] || t.Drawdown[i] < t.Drawdown[i-1] {
			return t, errors.Wrap(errors.ErrInvalidInput, "risk bands must be ascending")
		}
	}
	return t, nil
}

// RiskReport summarizes one price series
type RiskReport struct {
	Volatility  float64  `json:"volatility"`
	MaxDrawdown float64  `json:"max_drawdown"`
	Tier        RiskTier `json:"tier"`
	SampleSize  int      `json:"sample_size"`
}

// RiskAnalyzer computes volatility, drawdown and a risk tier from price history
type RiskAnalyzer struct {
	thresholds RiskThresholds
}

func NewRiskAnalyzer(thresholds RiskThresholds) *RiskAnalyzer {
	return &RiskAnalyzer{thresholds: thresholds}
}

// Analyze scores a chronological price series
func (a *RiskAnalyzer) Analyze(series []market.PricePoint) (RiskReport, error) {
	if err := validateSeries(series); err != nil {
		return RiskReport{}, err
	}

	prices := market.Floats(series)
	vol := volatility(returns(prices))
	dd := maxDrawdown(prices)

	return RiskReport{
		Volatility:  vol,
		MaxDrawdown: dd,
		Tier:        a.classify(vol, dd),
		SampleSize:  len(series),
	}, nil
}

func (a *RiskAnalyzer) classify(vol, dd float64) RiskTier {
	if vol == 0 {
		return RiskUnknown
	}
	v := band(vol, a.thresholds.Volatility)
	d := band(dd, a.thresholds.Drawdown)
	if d.level() > v.level() {
		return d
	}
	return v
}

func band(value float64, bounds [3]float64) RiskTier {
	for i, bound := range bounds {
		if value < bound {
			return riskLadder[i]
		}
	}
	return RiskExtreme
}

func validateSeries(series []market.PricePoint) error {
	if len(series) < 2 {
		return errors.Wrapf(errors.ErrInsufficientData, "need at least 2 price points, got %d", len(series))
	}
	for i, p := range series {
		if p.Price.IsNegative() {
			return errors.Wrapf(errors.ErrInvalidInput, "negative price at %s", p.Timestamp.Format("2006-01-02"))
		}
		if i > 0 && !p.Timestamp.After(series[i-1].Timestamp) {
			return errors.Wrapf(errors.ErrInvalidInput, "series is not chronological at index %d", i)
		}
	}
	return nil
}

// returns yields period-over-period rates of change; a zero previous price gives 0
func returns(prices []float64) []float64 {
	return talib.Rocp(prices, 1)[1:]
}

// volatility is the population standard deviation of rets
func volatility(rets []float64) float64 {
	if len(rets) == 0 {
		return 0
	}
	std := talib.StdDev(rets, len(rets), 1)
	return std[len(std)-1]
}

func maxDrawdown(prices []float64) float64 {
	peak := 0.0
	worst := 0.0
	for _, p := range prices {
		if p > peak {
			peak = p
			continue
		}
		if peak > 0 {
			if dd := (peak - p) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}

// BasketComparison contrasts single-asset risk with an equal-weight basket
type BasketComparison struct {
	Assets              []string              `json:"assets"`
	Periods             int                   `json:"periods"`
	PerAsset            map[string]RiskReport `json:"per_asset"`
	AvgAssetVolatility  float64               `json:"avg_asset_volatility"`
	BasketVolatility    float64               `json:"basket_volatility"`
	WorstAssetDrawdown  float64               `json:"worst_asset_drawdown"`
	BasketDrawdown      float64               `json:"basket_drawdown"`
	VolatilityReduction float64               `json:"volatility_reduction"` // fraction of average single-asset volatility removed
}

// CompareBasket aligns the series on their trailing common length and
// compares each asset with an equal-weight, per-period rebalanced basket.
func (a *RiskAnalyzer) CompareBasket(series map[string][]market.PricePoint) (BasketComparison, error) {
	if len(series) == 0 {
		return BasketComparison{}, errors.Wrap(errors.ErrInvalidInput, "no series to compare")
	}

	symbols := make([]string, 0, len(series))
	common := -1
	for symbol, s := range series {
		if err := validateSeries(s); err != nil {
			return BasketComparison{}, errors.Wrapf(err, "%s", symbol)
		}
		symbols = append(symbols, symbol)
		if common < 0 || len(s) < common {
			common = len(s)
		}
	}
	sort.Strings(symbols)

	out := BasketComparison{
		Assets:   symbols,
		Periods:  common - 1,
		PerAsset: make(map[string]RiskReport, len(symbols)),
	}

	basket := make([]float64, common-1)
	for _, symbol := range symbols {
		s := series[symbol]
		aligned := s[len(s)-common:]

		report, err := a.Analyze(aligned)
		if err != nil {
			return BasketComparison{}, errors.Wrapf(err, "%s", symbol)
		}
		out.PerAsset[symbol] = report
		out.AvgAssetVolatility += report.Volatility
		if report.MaxDrawdown > out.WorstAssetDrawdown {
			out.WorstAssetDrawdown = report.MaxDrawdown
		}

		for i, r := range returns(market.Floats(aligned)) {
			basket[i] += r / float64(len(symbols))
		}
	}
	out.AvgAssetVolatility /= float64(len(symbols))

	value := make([]float64, common)
	value[0] = 1
	for i, r := range basket {
		value[i+1] = value[i] * (1 + r)
	}
	out.BasketVolatility = volatility(basket)
	out.BasketDrawdown = maxDrawdown(value)
	if out.AvgAssetVolatility > 0 {
		out.VolatilityReduction = 1 - out.BasketVolatility/out.AvgAssetVolatility
	}

	return out, nil
}
