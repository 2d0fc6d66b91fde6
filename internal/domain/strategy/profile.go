package strategy

import (
	"strings"

	"github.com/shopspring/decimal"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

// Profile is the investor's risk appetite
type Profile string

const (
	Conservative Profile = "conservative"
	Balanced     Profile = "balanced"
	Aggressive   Profile = "aggressive"
)

// Profiles lists the supported profiles, most conservative first
var Profiles = []Profile{Conservative, Balanced, Aggressive}

// ParseProfile accepts a profile name case-insensitively; "moderate" means balanced
func ParseProfile(s string) (Profile, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conservative":
		return Conservative, nil
	case "balanced", "moderate", "":
		return Balanced, nil
	case "aggressive":
		return Aggressive, nil
	}
	return "", errors.Wrapf(errors.ErrInvalidInput, "unknown risk profile %q", s)
}

func (p Profile) String() string {
	return string(p)
}

// TierTable maps each tier to its share of the budget
type TierTable map[market.Tier]float64

// DefaultTables returns the built-in tier weights per profile
func DefaultTables() map[Profile]TierTable {
	return map[Profile]TierTable{
		Conservative: {
			market.TierBlueChip:    0.40,
			market.TierLargeCap:    0.30,
			market.TierMidCap:      0.20,
			market.TierSpeculative: 0.10,
		},
		Balanced: {
			market.TierBlueChip:    0.30,
			market.TierLargeCap:    0.30,
			market.TierMidCap:      0.25,
			market.TierSpeculative: 0.15,
		},
		Aggressive: {
			market.TierBlueChip:    0.20,
			market.TierLargeCap:    0.25,
			market.TierMidCap:      0.30,
			market.TierSpeculative: 0.25,
		},
	}
}

// TableFromSlice builds a table from weights ordered like market.Tiers
func TableFromSlice(weights []float64) (TierTable, error) {
	if len(weights) != len(market.Tiers) {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "expected %d tier weights, got %d", len(market.Tiers), len(weights))
	}
	table := make(TierTable, len(weights))
	for i, tier := range market.Tiers {
		table[tier] = weights[i]
	}
	return table, table.Validate()
}

const weightTolerance = 1e-9

// Validate checks that every weight is non-negative and that they sum to 1
func (t TierTable) Validate() error {
	sum := decimal.Zero
	for tier, w := range t {
		if !tier.Valid() {
			return errors.Wrapf(errors.ErrInvalidInput, "unknown tier %q in weight table", tier)
		}
		if w < 0 {
			return errors.Wrapf(errors.ErrInvalidInput, "negative weight for tier %s", tier)
		}
		sum = sum.Add(decimal.NewFromFloat(w))
	}
	if sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(decimal.NewFromFloat(weightTolerance)) {
		return errors.Wrapf(errors.ErrInvalidInput, "tier weights sum to %s, want 1", sum.String())
	}
	return nil
}

func (t TierTable) weight(tier market.Tier) decimal.Decimal {
	return decimal.NewFromFloat(t[tier])
}
