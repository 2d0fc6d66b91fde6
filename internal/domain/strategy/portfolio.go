package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// Position is a holding; CostBasis is the total amount paid, not a unit price
type Position struct {
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	CostBasis decimal.Decimal `json:"cost_basis"`
}

// Portfolio is an ordered set of positions, one per symbol
type Portfolio struct {
	ID        string     `json:"id"`
	Positions []Position `json:"positions"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Clone returns a deep copy
func (p Portfolio) Clone() Portfolio {
	out := p
	out.Positions = append([]Position(nil), p.Positions...)
	return out
}

// WithPosition returns a copy with pos merged in: quantities and cost bases
// add up when the symbol is already held.
func (p Portfolio) WithPosition(pos Position) (Portfolio, error) {
	pos.Symbol = market.NormalizeSymbol(pos.Symbol)
	if pos.Symbol == "" {
		return p, errors.Wrap(errors.ErrInvalidInput, "position without symbol")
	}
	if pos.Quantity.IsNegative() || pos.CostBasis.IsNegative() {
		return p, errors.Wrapf(errors.ErrInvalidInput, "%s: quantity and cost basis must not be negative", pos.Symbol)
	}

	out := p.Clone()
	out.UpdatedAt = time.Now().UTC()
	for i, existing := range out.Positions {
		if existing.Symbol == pos.Symbol {
			out.Positions[i].Quantity = existing.Quantity.Add(pos.Quantity)
			out.Positions[i].CostBasis = existing.CostBasis.Add(pos.CostBasis)
			return out, nil
		}
	}
	out.Positions = append(out.Positions, pos)
	return out, nil
}

// WithoutPosition returns a copy with symbol removed
func (p Portfolio) WithoutPosition(symbol string) (Portfolio, error) {
	symbol = market.NormalizeSymbol(symbol)
	out := p.Clone()
	for i, existing := range out.Positions {
		if existing.Symbol == symbol {
			out.Positions = append(out.Positions[:i], out.Positions[i+1:]...)
			out.UpdatedAt = time.Now().UTC()
			return out, nil
		}
	}
	return p, errors.Wrapf(errors.ErrNotFound, "position %s in portfolio %s", symbol, p.ID)
}

// PortfolioStore persists portfolios by id
type PortfolioStore interface {
	Get(ctx context.Context, id string) (Portfolio, error) // errors.ErrNotFound when absent
	Save(ctx context.Context, p Portfolio) error
	Delete(ctx context.Context, id string) error
}

// PriceLookup resolves the current price of a symbol
type PriceLookup func(ctx context.Context, symbol string) (decimal.Decimal, error)

// PriceLookupFrom adapts a price source to a PriceLookup
func PriceLookupFrom(src market.PriceSource) PriceLookup {
	return func(ctx context.Context, symbol string) (decimal.Decimal, error) {
		q, err := src.GetPrice(ctx, symbol)
		if err != nil {
			return decimal.Zero, err
		}
		return q.Price, nil
	}
}

// PositionReport is a valued position
type PositionReport struct {
	Symbol     string          `json:"symbol"`
	Quantity   decimal.Decimal `json:"quantity"`
	CostBasis  decimal.Decimal `json:"cost_basis"`
	Price      decimal.Decimal `json:"price"`
	Value      decimal.Decimal `json:"value"`
	PnL        decimal.Decimal `json:"pnl"`
	ReturnPct  decimal.Decimal `json:"return_pct"`
	Allocation decimal.Decimal `json:"allocation"`
	Priced     bool            `json:"priced"`
	PriceError string          `json:"price_error,omitempty"`
}

// PortfolioReport is a point-in-time valuation
type PortfolioReport struct {
	PortfolioID string           `json:"portfolio_id"`
	Positions   []PositionReport `json:"positions"`
	TotalCost   decimal.Decimal  `json:"total_cost"`
	TotalValue  decimal.Decimal  `json:"total_value"`
	TotalPnL    decimal.Decimal  `json:"total_pnl"`
	ReturnPct   decimal.Decimal  `json:"return_pct"`
	Unpriced    []string         `json:"unpriced,omitempty"`
	ValuedAt    time.Time        `json:"valued_at"`
}

const ratioPlaces = 8

// Tracker values portfolios against current prices
type Tracker struct{}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Evaluate prices every position and derives P&L and allocation.
// Positions whose price cannot be found are reported unpriced with zero value.
func (t *Tracker) Evaluate(ctx context.Context, p Portfolio, prices PriceLookup) (PortfolioReport, error) {
	for _, pos := range p.Positions {
		if pos.Quantity.IsNegative() {
			return PortfolioReport{}, errors.Wrapf(errors.ErrInvalidInput, "%s: negative quantity %s", pos.Symbol, pos.Quantity.String())
		}
	}

	report := PortfolioReport{
		PortfolioID: p.ID,
		Positions:   make([]PositionReport, len(p.Positions)),
		ValuedAt:    time.Now().UTC(),
	}

	lastPriced := -1
	for i, pos := range p.Positions {
		if err := ctx.Err(); err != nil {
			return PortfolioReport{}, err
		}

		line := PositionReport{
			Symbol:    pos.Symbol,
			Quantity:  pos.Quantity,
			CostBasis: pos.CostBasis,
		}
		report.TotalCost = report.TotalCost.Add(pos.CostBasis)

		price, err := prices(ctx, pos.Symbol)
		if err != nil {
			line.PriceError = errors.Code(err)
			report.Unpriced = append(report.Unpriced, pos.Symbol)
			report.Positions[i] = line
			continue
		}

		line.Priced = true
		line.Price = price
		line.Value = price.Mul(pos.Quantity)
		line.PnL = line.Value.Sub(pos.CostBasis)
		line.ReturnPct = percent(line.PnL, pos.CostBasis)

		report.TotalValue = report.TotalValue.Add(line.Value)
		report.Positions[i] = line
		lastPriced = i
	}

	report.TotalPnL = report.TotalValue.Sub(report.TotalCost)
	report.ReturnPct = percent(report.TotalPnL, report.TotalCost)

	if report.TotalValue.IsPositive() {
		assigned := decimal.Zero
		for i := range report.Positions {
			line := &report.Positions[i]
			if !line.Priced {
				continue
			}
			if i == lastPriced {
				line.Allocation = decimal.NewFromInt(1).Sub(assigned)
				break
			}
			line.Allocation = line.Value.DivRound(report.TotalValue, ratioPlaces)
			assigned = assigned.Add(line.Allocation)
		}
	}

	return report, nil
}

func percent(part, whole decimal.Decimal) decimal.Decimal {
	if whole.IsZero() {
		return decimal.Zero
	}
	return part.DivRound(whole, ratioPlaces).Mul(decimal.NewFromInt(100))
}
