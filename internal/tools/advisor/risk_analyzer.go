package advisor

import (
	"context"
	"fmt"
	"strings"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// RiskAnalyzerName is the registered tool name
const RiskAnalyzerName = "risk_analyzer"

const maxRiskDays = 365

// NewRiskAnalyzerTool scores symbols from daily history and compares them
// with an equal-weight basket.
func NewRiskAnalyzerTool(deps Deps) tools.Tool {
	deps = deps.withDefaults()

	schema := tools.Schema{
		Name:        RiskAnalyzerName,
		Description: "Analyze volatility, maximum drawdown and risk tier of cryptocurrencies from daily price history.",
		Category:    "analysis",
		Params: []tools.Param{
			{Name: "symbols", Type: tools.TypeString, Required: true, Description: "Comma separated symbols, e.g. 'BTC,ETH,DOGE'"},
			{Name: "days", Type: tools.TypeInteger, Default: 30, Description: "Days of history to analyze"},
			{Name: "compare_to_allin", Type: tools.TypeBoolean, Default: true,
				Description: "Compare single assets with an equal-weight diversified basket"},
		},
	}

	return tools.New(schema, func(ctx context.Context, args tools.Args) (any, error) {
		symbols := market.ParseSymbols(args.String("symbols"))
		if len(symbols) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidArguments, "symbols is empty")
		}
		days, _ := args.Int("days")
		if days < 2 || days > maxRiskDays {
			return nil, errors.Wrapf(errors.ErrInvalidArguments, "days must be between 2 and %d, got %d", maxRiskDays, days)
		}

		r := market.LastDays(days)
		reports := make(map[string]strategy.RiskReport, len(symbols))
		series := make(map[string][]market.PricePoint, len(symbols))
		var failed []symbolFailure
		var firstErr error

		for _, symbol := range symbols {
			points, err := deps.Prices.GetHistory(ctx, symbol, r)
			if err == nil {
				var report strategy.RiskReport
				if report, err = deps.Risk.Analyze(points); err == nil {
					reports[symbol] = report
					series[symbol] = points
					continue
				}
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			failed = append(failed, failureOf(symbol, err))
			if firstErr == nil {
				firstErr = err
			}
		}

		if len(reports) == 0 {
			return nil, errors.Wrapf(firstErr, "no history for %s", strings.Join(symbols, ", "))
		}

		lines := make([]string, 0, len(symbols)+1)
		for _, symbol := range symbols {
			if rep, ok := reports[symbol]; ok {
				lines = append(lines, fmt.Sprintf("%s %s risk (volatility %s, max drawdown %s)",
					symbol, rep.Tier, pct(rep.Volatility), pct(rep.MaxDrawdown)))
			}
		}

		payload := map[string]any{
			"days":   days,
			"assets": reports,
			"failed": failed,
		}

		if args.Bool("compare_to_allin", true) && len(series) > 1 {
			cmp, err := deps.Risk.CompareBasket(series)
			if err != nil {
				return nil, err
			}
			payload["comparison"] = cmp
			lines = append(lines, fmt.Sprintf("equal-weight basket volatility %s vs %s average single asset, drawdown %s vs worst %s",
				pct(cmp.BasketVolatility), pct(cmp.AvgAssetVolatility), pct(cmp.BasketDrawdown), pct(cmp.WorstAssetDrawdown)))
		}

		payload["summary"] = strings.Join(lines, "; ")
		return payload, nil
	})
}
