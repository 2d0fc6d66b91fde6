package advisor

import (
	"time"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/pkg/logger"
)

// DefaultPortfolioID is used when a call names no portfolio
const DefaultPortfolioID = "default"

// Deps bundles what the advisor tools need
type Deps struct {
	Prices     market.PriceSource
	Catalog    *market.Catalog
	Calculator *strategy.Calculator
	Risk       *strategy.RiskAnalyzer
	Tracker    *strategy.Tracker
	Portfolios strategy.PortfolioStore

	DefaultAssetCount int
	Now               func() time.Time
	Log               *logger.Logger
}

// withDefaults fills every optional field except Prices and Portfolios
func (d Deps) withDefaults() Deps {
	if d.Catalog == nil {
		d.Catalog = market.DefaultCatalog()
	}
	if d.Calculator == nil {
		d.Calculator = strategy.NewCalculator(nil)
	}
	if d.Risk == nil {
		d.Risk = strategy.NewRiskAnalyzer(strategy.DefaultRiskThresholds())
	}
	if d.Tracker == nil {
		d.Tracker = strategy.NewTracker()
	}
	if d.DefaultAssetCount <= 0 {
		d.DefaultAssetCount = strategy.DefaultTargetCount
	}
	if d.Now == nil {
		d.Now = func() time.Time { return time.Now().UTC() }
	}
	if d.Log == nil {
		d.Log = logger.Get().With("component", "advisor_tools")
	}
	return d
}
