package advisor

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// usd renders a price; sub-dollar prices keep their significant digits
func usd(d decimal.Decimal) string {
	if d.Abs().LessThan(decimal.NewFromInt(1)) && !d.IsZero() {
		return "$" + d.String()
	}
	return "$" + humanize.CommafWithDigits(d.InexactFloat64(), 2)
}

// compactUSD renders large volumes as $25B or $750M
func compactUSD(d decimal.Decimal) string {
	v := d.InexactFloat64()
	switch {
	case v >= 1e9:
		return "$" + humanize.CommafWithDigits(v/1e9, 2) + "B"
	case v >= 1e6:
		return "$" + humanize.CommafWithDigits(v/1e6, 2) + "M"
	}
	return "$" + humanize.CommafWithDigits(v, 2)
}

func signedPct(d decimal.Decimal) string {
	return fmt.Sprintf("%+.2f%%", d.InexactFloat64())
}

func pct(f float64) string {
	return fmt.Sprintf("%.1f%%", f*100)
}
