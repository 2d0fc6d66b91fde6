package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog_Symbols(t *testing.T) {
	symbols := DefaultCatalog().Symbols()

	require.Len(t, symbols, 15)
	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, symbols[:3])
	assert.Equal(t, "SHIB", symbols[len(symbols)-1])
}

func TestCatalog_Lookup(t *testing.T) {
	c := DefaultCatalog()

	l, ok := c.Lookup(" eth ")
	require.True(t, ok)
	assert.Equal(t, "Ethereum", l.Name)
	assert.Equal(t, TierBlueChip, l.Tier)

	_, ok = c.Lookup("NOTREAL")
	assert.False(t, ok)
	assert.Equal(t, TierSpeculative, c.TierOf("NOTREAL"))
}

func TestParseSymbols(t *testing.T) {
	assert.Equal(t, []string{"BTC", "ETH", "DOGE"}, ParseSymbols("btc, ETH,,doge,btc"))
	assert.Empty(t, ParseSymbols(" , "))
}

func TestTierRank(t *testing.T) {
	assert.Equal(t, 0, TierBlueChip.Rank())
	assert.Equal(t, 3, TierSpeculative.Rank())
	assert.False(t, Tier("meme").Valid())
}

func TestRangeStart(t *testing.T) {
	end := time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), Range{Days: 30, End: end}.Start())
	assert.Equal(t, end, Range{Days: 1, End: end}.Start())
}
