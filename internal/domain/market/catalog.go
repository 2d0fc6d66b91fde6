package market

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Listing is the static description of a supported asset
type Listing struct {
	Symbol    string
	Name      string
	Tier      Tier
	Volume24h decimal.Decimal // reference 24h volume, USD
	RefPrice  decimal.Decimal // reference spot price, USD
	Change24h decimal.Decimal
}

// Catalog is the set of assets the advisor knows how to classify
type Catalog struct {
	listings map[string]Listing
}

func usd(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// DefaultCatalog returns the built-in listings
func DefaultCatalog() *Catalog {
	return NewCatalog([]Listing{
		{"BTC", "Bitcoin", TierBlueChip, usd("25000000000"), usd("97500"), usd("2.5")},
		{"ETH", "Ethereum", TierBlueChip, usd("15000000000"), usd("3450"), usd("1.8")},
		{"SOL", "Solana", TierLargeCap, usd("3000000000"), usd("195"), usd("4.2")},
		{"XRP", "Ripple", TierMidCap, usd("2100000000"), usd("2.35"), usd("0.9")},
		{"DOGE", "Dogecoin", TierSpeculative, usd("1800000000"), usd("0.38"), usd("12.0")},
		{"ADA", "Cardano", TierLargeCap, usd("900000000"), usd("0.95"), usd("-1.2")},
		{"AVAX", "Avalanche", TierLargeCap, usd("750000000"), usd("42.00"), usd("5.5")},
		{"LINK", "Chainlink", TierMidCap, usd("700000000"), usd("24.50"), usd("3.1")},
		{"LTC", "Litecoin", TierLargeCap, usd("650000000"), usd("105"), usd("1.5")},
		{"SHIB", "Shiba Inu", TierSpeculative, usd("600000000"), usd("0.000022"), usd("-8.0")},
		{"BCH", "Bitcoin Cash", TierLargeCap, usd("550000000"), usd("485"), usd("0.7")},
		{"DOT", "Polkadot", TierLargeCap, usd("500000000"), usd("7.20"), usd("0.8")},
		{"UNI", "Uniswap", TierMidCap, usd("400000000"), usd("14.20"), usd("2.2")},
		{"MATIC", "Polygon", TierMidCap, usd("350000000"), usd("0.52"), usd("-0.5")},
		{"ATOM", "Cosmos", TierMidCap, usd("300000000"), usd("9.80"), usd("1.2")},
	})
}

func NewCatalog(listings []Listing) *Catalog {
	c := &Catalog{listings: make(map[string]Listing, len(listings))}
	for _, l := range listings {
		l.Symbol = NormalizeSymbol(l.Symbol)
		c.listings[l.Symbol] = l
	}
	return c
}

// Lookup finds a listing by symbol, case-insensitively
func (c *Catalog) Lookup(symbol string) (Listing, bool) {
	l, ok := c.listings[NormalizeSymbol(symbol)]
	return l, ok
}

// TierOf returns the listed tier, or speculative for unlisted symbols
func (c *Catalog) TierOf(symbol string) Tier {
	if l, ok := c.Lookup(symbol); ok {
		return l.Tier
	}
	return TierSpeculative
}

// Symbols lists every symbol ordered by tier, then by volume descending
func (c *Catalog) Symbols() []string {
	all := make([]Listing, 0, len(c.listings))
	for _, l := range c.listings {
		all = append(all, l)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Tier.Rank() != all[j].Tier.Rank() {
			return all[i].Tier.Rank() < all[j].Tier.Rank()
		}
		if !all[i].Volume24h.Equal(all[j].Volume24h) {
			return all[i].Volume24h.GreaterThan(all[j].Volume24h)
		}
		return all[i].Symbol < all[j].Symbol
	})

	out := make([]string, len(all))
	for i, l := range all {
		out[i] = l.Symbol
	}
	return out
}

// NormalizeSymbol upper-cases and trims a user-supplied ticker
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// ParseSymbols splits a comma separated list, dropping blanks and duplicates
func ParseSymbols(list string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(list, ",") {
		s := NormalizeSymbol(part)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
