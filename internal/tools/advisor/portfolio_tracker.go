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

// PortfolioTrackerName is the registered tool name
const PortfolioTrackerName = "portfolio_tracker"

// NewPortfolioTrackerTool views, adds to and removes from stored portfolios.
// Viewing an unknown portfolio returns an empty report. "update" is accepted
// as a view since valuations are always priced fresh.
func NewPortfolioTrackerTool(deps Deps) tools.Tool {
	deps = deps.withDefaults()

	schema := tools.Schema{
		Name:           PortfolioTrackerName,
		Description:    "Track a crypto portfolio: view or update current value and P&L, add a position, or remove a position.",
		Category:       "tracking",
		HasSideEffects: true,
		Params: []tools.Param{
			{Name: "action", Type: tools.TypeString, Required: true, Enum: []any{"view", "update", "add", "remove"}, Description: "What to do; update refreshes prices"},
			{Name: "portfolio_id", Type: tools.TypeString, Default: DefaultPortfolioID, Description: "Portfolio identifier"},
			{Name: "symbol", Type: tools.TypeString, Description: "Asset symbol (add and remove)"},
			{Name: "quantity", Type: tools.TypeNumber, Description: "Units bought (add)"},
			{Name: "cost_basis", Type: tools.TypeNumber, Description: "Price paid per unit in USD (add)"},
		},
	}

	t := &portfolioTracker{deps: deps}
	return tools.New(schema, func(ctx context.Context, args tools.Args) (any, error) {
		id := strings.TrimSpace(args.String("portfolio_id"))
		if id == "" {
			id = DefaultPortfolioID
		}

		switch args.String("action") {
		case "view", "update":
			return t.view(ctx, id)
		case "add":
			return t.add(ctx, id, args)
		case "remove":
			return t.remove(ctx, id, args)
		}
		return nil, errors.Wrapf(errors.ErrInvalidArguments, "unknown action %q", args.String("action"))
	})
}

type portfolioTracker struct {
	deps Deps
}

func (t *portfolioTracker) load(ctx context.Context, id string) (strategy.Portfolio, error) {
	p, err := t.deps.Portfolios.Get(ctx, id)
	if errors.Is(err, errors.ErrNotFound) {
		return strategy.Portfolio{ID: id}, nil
	}
	return p, err
}

func (t *portfolioTracker) view(ctx context.Context, id string) (any, error) {
	p, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	report, err := t.deps.Tracker.Evaluate(ctx, p, strategy.PriceLookupFrom(t.deps.Prices))
	if err != nil {
		return nil, err
	}

	var summary string
	if len(report.Positions) == 0 {
		summary = fmt.Sprintf("Portfolio %q is empty. Use the add action to record positions.", id)
	} else {
		summary = fmt.Sprintf("Portfolio %q: %d positions worth %s, cost %s, P&L %s (%s)",
			id, len(report.Positions), usd(report.TotalValue), usd(report.TotalCost),
			usd(report.TotalPnL), signedPct(report.ReturnPct))
		if len(report.Unpriced) > 0 {
			summary += fmt.Sprintf("; no price for %s", strings.Join(report.Unpriced, ", "))
		}
	}

	return map[string]any{
		"action":  "view",
		"report":  report,
		"summary": summary,
	}, nil
}

func (t *portfolioTracker) add(ctx context.Context, id string, args tools.Args) (any, error) {
	symbol := market.NormalizeSymbol(args.String("symbol"))
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidArguments, "symbol is required for add")
	}
	quantity, ok := args.Decimal("quantity")
	if !ok || !quantity.IsPositive() {
		return nil, errors.Wrap(errors.ErrInvalidArguments, "a positive quantity is required for add")
	}
	unitCost, _ := args.Decimal("cost_basis")
	if unitCost.IsNegative() {
		return nil, errors.Wrap(errors.ErrInvalidArguments, "cost_basis must not be negative")
	}

	p, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := p.WithPosition(strategy.Position{
		Symbol:    symbol,
		Quantity:  quantity,
		CostBasis: unitCost.Mul(quantity),
	})
	if err != nil {
		return nil, err
	}
	if err := t.deps.Portfolios.Save(ctx, updated); err != nil {
		return nil, err
	}
	t.deps.Log.Infow("Position added", "portfolio_id", id, "symbol", symbol, "quantity", quantity.String())

	return map[string]any{
		"action":    "add",
		"portfolio": updated,
		"summary": fmt.Sprintf("Added %s %s at %s per unit to portfolio %q (%d positions)",
			quantity.String(), symbol, usd(unitCost), id, len(updated.Positions)),
	}, nil
}

func (t *portfolioTracker) remove(ctx context.Context, id string, args tools.Args) (any, error) {
	symbol := market.NormalizeSymbol(args.String("symbol"))
	if symbol == "" {
		return nil, errors.Wrap(errors.ErrInvalidArguments, "symbol is required for remove")
	}

	p, err := t.deps.Portfolios.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated, err := p.WithoutPosition(symbol)
	if err != nil {
		return nil, err
	}
	if err := t.deps.Portfolios.Save(ctx, updated); err != nil {
		return nil, err
	}
	t.deps.Log.Infow("Position removed", "portfolio_id", id, "symbol", symbol)

	return map[string]any{
		"action":    "remove",
		"portfolio": updated,
		"summary":   fmt.Sprintf("Removed %s from portfolio %q (%d positions left)", symbol, id, len(updated.Positions)),
	}, nil
}
