package strategy

import (
	"sort"

	"github.com/shopspring/decimal"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// DefaultTargetCount is the number of assets picked when the request leaves it unset
const DefaultTargetCount = 10

const (
	amountPlaces   = 2
	quantityPlaces = 8
	weightPlaces   = 16
)

// Asset is a candidate for allocation
type Asset struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Tier      market.Tier     `json:"tier"`
	Price     decimal.Decimal `json:"price"`
	Volume24h decimal.Decimal `json:"volume_24h"`
}

// AssetFromQuote converts a market quote into an allocation candidate
func AssetFromQuote(q market.Quote) Asset {
	return Asset{
		Symbol:    q.Symbol,
		Name:      q.Name,
		Tier:      q.Tier,
		Price:     q.Price,
		Volume24h: q.Volume24h,
	}
}

// Allocation is one line of a DCA plan
type Allocation struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name,omitempty"`
	Tier     market.Tier     `json:"tier"`
	Weight   float64         `json:"weight"`
	Amount   decimal.Decimal `json:"amount"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Valid    bool            `json:"valid"`
}

// AllocationRequest describes one DCA split
type AllocationRequest struct {
	Total       decimal.Decimal
	Profile     Profile
	Assets      []Asset
	TargetCount int // 0 means DefaultTargetCount
}

// Calculator splits an investment across tiers according to a risk profile
type Calculator struct {
	tables map[Profile]TierTable
}

// NewCalculator creates a calculator; nil tables selects DefaultTables
func NewCalculator(tables map[Profile]TierTable) *Calculator {
	if tables == nil {
		tables = DefaultTables()
	}
	return &Calculator{tables: tables}
}

// Table returns the tier weights used for profile
func (c *Calculator) Table(profile Profile) (TierTable, bool) {
	t, ok := c.tables[profile]
	return t, ok
}

// Allocate picks assets and splits req.Total across them.
// Weights sum to exactly 1 and amounts sum to exactly req.Total.
func (c *Calculator) Allocate(req AllocationRequest) ([]Allocation, error) {
	if !req.Total.IsPositive() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "total must be positive, got %s", req.Total.String())
	}
	if len(req.Assets) == 0 {
		return nil, errors.Wrap(errors.ErrInvalidInput, "no candidate assets")
	}
	if req.TargetCount < 0 {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "asset count must not be negative, got %d", req.TargetCount)
	}

	table, ok := c.tables[req.Profile]
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "no weight table for profile %q", req.Profile)
	}
	if err := table.Validate(); err != nil {
		return nil, err
	}

	byTier, err := groupByTier(req.Assets)
	if err != nil {
		return nil, err
	}

	n := req.TargetCount
	if n == 0 {
		n = DefaultTargetCount
	}
	if n > len(req.Assets) {
		n = len(req.Assets)
	}

	selected := selectAssets(byTier, table, n)
	budgets := tierBudgets(selected, table)

	return splitBudgets(req.Total, selected, budgets), nil
}

func groupByTier(assets []Asset) (map[market.Tier][]Asset, error) {
	seen := make(map[string]bool, len(assets))
	byTier := make(map[market.Tier][]Asset)

	for _, a := range assets {
		if a.Symbol == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "asset without symbol")
		}
		if seen[a.Symbol] {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "duplicate asset %s", a.Symbol)
		}
		if !a.Tier.Valid() {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "asset %s has unknown tier %q", a.Symbol, a.Tier)
		}
		seen[a.Symbol] = true
		byTier[a.Tier] = append(byTier[a.Tier], a)
	}

	for _, list := range byTier {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Volume24h.Equal(list[j].Volume24h) {
				return list[i].Volume24h.GreaterThan(list[j].Volume24h)
			}
			return list[i].Symbol < list[j].Symbol
		})
	}
	return byTier, nil
}

// selectAssets fills per-tier slot quotas, most conservative tier first.
// Unused slots flow to the next tier; leftovers are filled in a second pass.
func selectAssets(byTier map[market.Tier][]Asset, table TierTable, n int) map[market.Tier][]Asset {
	selected := make(map[market.Tier][]Asset)
	taken := 0
	carry := 0

	for _, tier := range market.Tiers {
		quota := carry
		if w := table[tier]; w > 0 {
			q := int(decimal.NewFromFloat(w).Mul(decimal.NewFromInt(int64(n))).Round(0).IntPart())
			if q < 1 {
				q = 1
			}
			quota += q
		}

		take := min(quota, len(byTier[tier]), n-taken)
		if take > 0 {
			selected[tier] = append(selected[tier], byTier[tier][:take]...)
			taken += take
		}
		carry = quota - take
	}

	for _, tier := range market.Tiers {
		if taken >= n {
			break
		}
		if table[tier] <= 0 {
			continue
		}
		have := len(selected[tier])
		extra := min(len(byTier[tier])-have, n-taken)
		if extra > 0 {
			selected[tier] = append(selected[tier], byTier[tier][have:have+extra]...)
			taken += extra
		}
	}

	return selected
}

// tierBudgets moves the weight of tiers without selections to the next
// less-conservative tier that has some, or the nearest more-conservative one.
func tierBudgets(selected map[market.Tier][]Asset, table TierTable) map[market.Tier]decimal.Decimal {
	budgets := make(map[market.Tier]decimal.Decimal)

	for i, tier := range market.Tiers {
		w := table.weight(tier)
		if w.IsZero() {
			continue
		}
		if len(selected[tier]) > 0 {
			budgets[tier] = budgets[tier].Add(w)
			continue
		}

		target, found := market.Tier(""), false
		for _, next := range market.Tiers[i+1:] {
			if len(selected[next]) > 0 {
				target, found = next, true
				break
			}
		}
		if !found {
			for j := i - 1; j >= 0; j-- {
				if len(selected[market.Tiers[j]]) > 0 {
					target, found = market.Tiers[j], true
					break
				}
			}
		}
		if found {
			budgets[target] = budgets[target].Add(w)
		}
	}
	return budgets
}

func splitBudgets(total decimal.Decimal, selected map[market.Tier][]Asset, budgets map[market.Tier]decimal.Decimal) []Allocation {
	type line struct {
		asset  Asset
		weight decimal.Decimal
	}

	var lines []line
	for _, tier := range market.Tiers {
		assets := selected[tier]
		if len(assets) == 0 {
			continue
		}
		each := budgets[tier].DivRound(decimal.NewFromInt(int64(len(assets))), weightPlaces)
		for _, a := range assets {
			lines = append(lines, line{asset: a, weight: each})
		}
	}

	one := decimal.NewFromInt(1)
	weightSum := decimal.Zero
	allocated := decimal.Zero
	out := make([]Allocation, len(lines))

	for i, l := range lines {
		weight := l.weight
		if i == len(lines)-1 {
			weight = one.Sub(weightSum)
		}
		weightSum = weightSum.Add(weight)

		reached := roundedShare(total, weightSum, i == len(lines)-1)
		amount := reached.Sub(allocated)
		allocated = reached

		alloc := Allocation{
			Symbol:   l.asset.Symbol,
			Name:     l.asset.Name,
			Tier:     l.asset.Tier,
			Weight:   weight.InexactFloat64(),
			Amount:   amount,
			Price:    l.asset.Price,
			Quantity: decimal.Zero,
		}
		if l.asset.Price.IsPositive() {
			alloc.Quantity = amount.DivRound(l.asset.Price, quantityPlaces)
			alloc.Valid = true
		}
		out[i] = alloc
	}
	return out
}

// roundedShare is total*fraction rounded to cents, capped at total. Amounts
// taken as differences of consecutive shares are never negative and sum to
// total exactly.
func roundedShare(total, fraction decimal.Decimal, last bool) decimal.Decimal {
	if last {
		return total
	}
	share := total.Mul(fraction).Round(amountPlaces)
	if share.GreaterThan(total) {
		return total
	}
	return share
}

// TierTotals sums allocated amounts per tier
func TierTotals(allocs []Allocation) map[market.Tier]decimal.Decimal {
	totals := make(map[market.Tier]decimal.Decimal)
	for _, a := range allocs {
		totals[a.Tier] = totals[a.Tier].Add(a.Amount)
	}
	return totals
}
