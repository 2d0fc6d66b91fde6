package advisor

import (
	"context"
	"fmt"
	"strings"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

// PriceLookupName is the registered tool name
const PriceLookupName = "price_lookup"

type symbolFailure struct {
	Symbol  string `json:"symbol"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

func failureOf(symbol string, err error) symbolFailure {
	return symbolFailure{Symbol: symbol, Reason: errors.Code(err), Message: err.Error()}
}

// NewPriceLookupTool quotes one or more symbols. It fails only when every symbol fails.
func NewPriceLookupTool(deps Deps) tools.Tool {
	deps = deps.withDefaults()

	schema := tools.Schema{
		Name:        PriceLookupName,
		Description: "Get the current price, 24h change and 24h volume of one or more cryptocurrencies.",
		Category:    "market",
		Params: []tools.Param{
			{Name: "symbol", Type: tools.TypeString, Required: true,
				Description: "Ticker symbol such as BTC, or a comma separated list such as 'BTC,ETH,SOL'"},
		},
	}

	return tools.New(schema, func(ctx context.Context, args tools.Args) (any, error) {
		symbols := market.ParseSymbols(args.String("symbol"))
		if len(symbols) == 0 {
			return nil, errors.Wrap(errors.ErrInvalidArguments, "symbol is empty")
		}

		quotes := make([]market.Quote, 0, len(symbols))
		var failed []symbolFailure
		var firstErr error
		for _, symbol := range symbols {
			q, err := deps.Prices.GetPrice(ctx, symbol)
			if err != nil {
				deps.Log.Debugw("Price lookup failed", "symbol", symbol, "error", err)
				failed = append(failed, failureOf(symbol, err))
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			quotes = append(quotes, q)
		}

		if len(quotes) == 0 {
			return nil, errors.Wrapf(firstErr, "no price for %s", strings.Join(symbols, ", "))
		}

		lines := make([]string, len(quotes))
		for i, q := range quotes {
			lines[i] = fmt.Sprintf("%s (%s) %s, %s 24h, volume %s",
				q.Symbol, q.Name, usd(q.Price), signedPct(q.Change24h), compactUSD(q.Volume24h))
		}
		if len(failed) > 0 {
			lines = append(lines, fmt.Sprintf("%d symbol(s) unavailable", len(failed)))
		}

		return map[string]any{
			"quotes":  quotes,
			"failed":  failed,
			"summary": strings.Join(lines, "; "),
		}, nil
	})
}
