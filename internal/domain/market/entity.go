package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tier is the liquidity/risk bucket an asset belongs to, most conservative first
type Tier string

const (
	TierBlueChip    Tier = "blue_chip"
	TierLargeCap    Tier = "large_cap"
	TierMidCap      Tier = "mid_cap"
	TierSpeculative Tier = "speculative"
)

// Tiers lists every tier from most to least conservative
var Tiers = []Tier{TierBlueChip, TierLargeCap, TierMidCap, TierSpeculative}

// Rank returns the position of t in Tiers, or len(Tiers) for an unknown tier
func (t Tier) Rank() int {
	for i, tier := range Tiers {
		if tier == t {
			return i
		}
	}
	return len(Tiers)
}

// Valid reports whether t is one of the known tiers
func (t Tier) Valid() bool {
	return t.Rank() < len(Tiers)
}

func (t Tier) String() string {
	return string(t)
}

// Quote is a point-in-time spot price with 24h statistics
type Quote struct {
	Symbol    string          `json:"symbol"`
	Name      string          `json:"name"`
	Tier      Tier            `json:"tier"`
	Price     decimal.Decimal `json:"price"`
	Change24h decimal.Decimal `json:"change_24h"` // percent
	Volume24h decimal.Decimal `json:"volume_24h"` // quote currency
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
}

// PricePoint is one sample of a price series
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// Range selects a window of daily history ending at End (inclusive)
type Range struct {
	Days int       `json:"days"`
	End  time.Time `json:"end"`
}

// LastDays returns a Range covering the given number of days up to now
func LastDays(days int) Range {
	return Range{Days: days, End: time.Now().UTC().Truncate(24 * time.Hour)}
}

// Start returns the first day included in the range
func (r Range) Start() time.Time {
	if r.Days <= 1 {
		return r.End
	}
	return r.End.AddDate(0, 0, -(r.Days - 1))
}

// Floats extracts prices as float64 for statistical routines
func Floats(series []PricePoint) []float64 {
	out := make([]float64, len(series))
	for i, p := range series {
		out[i] = p.Price.InexactFloat64()
	}
	return out
}
