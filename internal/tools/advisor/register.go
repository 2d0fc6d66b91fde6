package advisor

import (
	"time"

	"dcaadvisor/internal/tools"
	"dcaadvisor/internal/tools/middleware"
	"dcaadvisor/pkg/errors"
)

// Options control the middleware wrapped around every advisor tool
type Options struct {
	Timeout time.Duration // 0 leaves the loop's per-call timeout in charge
	Retries int           // extra attempts on transient errors; side-effecting tools never retry
	Backoff time.Duration
	Metrics bool
}

// Tools builds the four advisor tools
func Tools(deps Deps) []tools.Tool {
	return []tools.Tool{
		NewPriceLookupTool(deps),
		NewDCACalculatorTool(deps),
		NewRiskAnalyzerTool(deps),
		NewPortfolioTrackerTool(deps),
	}
}

// Register wraps the advisor tools in middleware and adds them to registry
func Register(registry *tools.Registry, deps Deps, opts Options) error {
	if deps.Prices == nil {
		return errors.Wrap(errors.ErrInvalidInput, "advisor tools need a price source")
	}
	if deps.Portfolios == nil {
		return errors.Wrap(errors.ErrInvalidInput, "advisor tools need a portfolio store")
	}

	for _, t := range Tools(deps) {
		b := middleware.For(t)
		if opts.Retries > 0 {
			b = b.WithRetry(opts.Retries+1, opts.Backoff)
		}
		if opts.Timeout > 0 {
			b = b.WithTimeout(opts.Timeout)
		}
		if opts.Metrics {
			b = b.WithMetrics()
		}
		if err := registry.Register(b.Build()); err != nil {
			return err
		}
	}
	return nil
}
