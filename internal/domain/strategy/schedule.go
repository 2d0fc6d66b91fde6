package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"dcaadvisor/pkg/errors"
)

// Cadence is how often and how many times a profile buys
type Cadence struct {
	Purchases    int
	IntervalDays int
}

var cadences = map[Profile]Cadence{
	Conservative: {Purchases: 12, IntervalDays: 30},
	Balanced:     {Purchases: 6, IntervalDays: 60},
	Aggressive:   {Purchases: 2, IntervalDays: 180},
}

// CadenceFor returns the purchase cadence of a profile
func CadenceFor(p Profile) (Cadence, bool) {
	c, ok := cadences[p]
	return c, ok
}

// Purchase is one scheduled buy
type Purchase struct {
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
}

// Schedule spreads an investment over periodic buys
type Schedule struct {
	Total        decimal.Decimal `json:"total"`
	Profile      Profile         `json:"profile"`
	IntervalDays int             `json:"interval_days"`
	PerPurchase  decimal.Decimal `json:"per_purchase"`
	Purchases    []Purchase      `json:"purchases"`
}

// BuildSchedule splits total into equal buys at the profile's cadence.
// Rounding cents are spread so that buys differ by at most one cent.
func BuildSchedule(total decimal.Decimal, profile Profile, start time.Time) (Schedule, error) {
	if !total.IsPositive() {
		return Schedule{}, errors.Wrapf(errors.ErrInvalidInput, "total must be positive, got %s", total.String())
	}
	cadence, ok := cadences[profile]
	if !ok {
		return Schedule{}, errors.Wrapf(errors.ErrInvalidInput, "no cadence for profile %q", profile)
	}

	n := decimal.NewFromInt(int64(cadence.Purchases))
	each := total.DivRound(n, amountPlaces)
	purchases := make([]Purchase, cadence.Purchases)
	spent := decimal.Zero

	for i := range purchases {
		fraction := decimal.NewFromInt(int64(i + 1)).Div(n)
		reached := roundedShare(total, fraction, i == len(purchases)-1)
		amount := reached.Sub(spent)
		spent = reached
		purchases[i] = Purchase{
			Date:   start.AddDate(0, 0, i*cadence.IntervalDays),
			Amount: amount,
		}
	}

	return Schedule{
		Total:        total,
		Profile:      profile,
		IntervalDays: cadence.IntervalDays,
		PerPurchase:  each,
		Purchases:    purchases,
	}, nil
}
