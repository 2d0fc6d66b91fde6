package advisor

import (
	"context"
	"fmt"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/domain/strategy"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// DCACalculatorName is the registered tool name
const DCACalculatorName = "dca_calculator"

// NewDCACalculatorTool splits an amount across the catalog by risk profile,
// optionally with a periodic purchase schedule.
func NewDCACalculatorTool(deps Deps) tools.Tool {
	deps = deps.withDefaults()

	schema := tools.Schema{
		Name:        DCACalculatorName,
		Description: "Calculate a dollar-cost averaging allocation that spreads an investment across several assets according to a risk profile.",
		Category:    "planning",
		Params: []tools.Param{
			{Name: "amount", Type: tools.TypeNumber, Required: true, Description: "Total amount to invest, in USD"},
			{Name: "risk_level", Type: tools.TypeString, Default: "conservative",
				Enum:        []any{"conservative", "balanced", "moderate", "aggressive"},
				Description: "Risk tolerance; moderate is the same as balanced"},
			{Name: "asset_count", Type: tools.TypeInteger, Description: "How many assets to spread over (default 10)"},
			{Name: "exclude", Type: tools.TypeString, Description: "Comma separated symbols to leave out"},
			{Name: "include_schedule", Type: tools.TypeBoolean, Default: false, Description: "Also return a periodic purchase schedule"},
		},
	}

	return tools.New(schema, func(ctx context.Context, args tools.Args) (any, error) {
		amount, _ := args.Decimal("amount")
		profile, err := strategy.ParseProfile(args.String("risk_level"))
		if err != nil {
			return nil, errors.Wrap(errors.ErrInvalidArguments, err.Error())
		}

		count, ok := args.Int("asset_count")
		if !ok {
			count = deps.DefaultAssetCount
		}
		if count <= 0 {
			return nil, errors.Wrapf(errors.ErrInvalidArguments, "asset_count must be positive, got %d", count)
		}

		excluded := make(map[string]bool)
		for _, s := range market.ParseSymbols(args.String("exclude")) {
			excluded[s] = true
		}

		var (
			assets   []strategy.Asset
			skipped  []symbolFailure
			firstErr error
		)
		for _, symbol := range deps.Catalog.Symbols() {
			if excluded[symbol] {
				continue
			}
			q, err := deps.Prices.GetPrice(ctx, symbol)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				skipped = append(skipped, failureOf(symbol, err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			assets = append(assets, strategy.AssetFromQuote(q))
		}
		if len(assets) == 0 {
			if firstErr == nil {
				return nil, errors.Wrap(errors.ErrInvalidArguments, "every candidate asset is excluded")
			}
			return nil, errors.Wrap(firstErr, "could not price any candidate asset")
		}

		allocations, err := deps.Calculator.Allocate(strategy.AllocationRequest{
			Total:       amount,
			Profile:     profile,
			Assets:      assets,
			TargetCount: count,
		})
		if err != nil {
			return nil, err
		}

		totals := strategy.TierTotals(allocations)
		summary := fmt.Sprintf("%s %s plan over %d assets", usd(amount), profile, len(allocations))
		for _, tier := range market.Tiers {
			if t, ok := totals[tier]; ok {
				summary += fmt.Sprintf("; %s %s", tier, usd(t))
			}
		}

		payload := map[string]any{
			"amount":      amount,
			"profile":     profile,
			"allocations": allocations,
			"tier_totals": totals,
			"skipped":     skipped,
		}

		if args.Bool("include_schedule", false) {
			schedule, err := strategy.BuildSchedule(amount, profile, deps.Now())
			if err != nil {
				return nil, err
			}
			payload["schedule"] = schedule
			summary += fmt.Sprintf("; buy %s every %d days, %d times",
				usd(schedule.PerPurchase), schedule.IntervalDays, len(schedule.Purchases))
		}

		payload["summary"] = summary
		return payload, nil
	})
}
