package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/domain/market"
	"dcaadvisor/pkg/errors"
)

func newTestSource(t *testing.T, handler http.HandlerFunc) *Source {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, Timeout: time.Second})
}

func TestSource_GetPrice(t *testing.T) {
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"97123.45","quoteVolume":"1234567.8","priceChangePercent":"-1.25","closeTime":1719705600000}`))
	})

	q, err := src.GetPrice(context.Background(), "btc")
	require.NoError(t, err)
	assert.Equal(t, "BTC", q.Symbol)
	assert.Equal(t, "Bitcoin", q.Name)
	assert.Equal(t, market.TierBlueChip, q.Tier)
	assert.Equal(t, "97123.45", q.Price.String())
	assert.Equal(t, "-1.25", q.Change24h.String())
	assert.Equal(t, SourceName, q.Source)
}

func TestSource_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"invalid symbol", http.StatusBadRequest, `{"code":-1121,"msg":"Invalid symbol."}`, errors.ErrNotFound},
		{"rate limited", http.StatusTooManyRequests, `{}`, errors.ErrRateLimitExceeded},
		{"server error", http.StatusBadGateway, `oops`, errors.ErrUnavailable},
		{"other client error", http.StatusBadRequest, `{"code":-1100,"msg":"Illegal characters"}`, errors.ErrExternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := src.GetPrice(context.Background(), "XYZ")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), err.Error())
		})
	}
}

func TestSource_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	src := New(Config{BaseURL: url, Timeout: time.Second})
	_, err := src.GetPrice(context.Background(), "BTC")
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}

func TestSource_GetHistory(t *testing.T) {
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	src := newTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "ETHUSDT", q.Get("symbol"))
		assert.Equal(t, "1d", q.Get("interval"))
		assert.Equal(t, "3", q.Get("limit"))
		_, _ = w.Write([]byte(`[
			[1719532800000,"3400.0","3500.0","3300.0","3450.10","1000",1719619199999,"0",1,"0","0","0"],
			[1719619200000,"3450.1","3520.0","3390.0","3390.00","1000",1719705599999,"0",1,"0","0","0"],
			[1719705600000,"3390.0","3480.0","3380.0","3471.55","1000",1719791999999,"0",1,"0","0","0"]
		]`))
	})

	points, err := src.GetHistory(context.Background(), "eth", market.Range{Days: 3, End: end})
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, end.AddDate(0, 0, -2), points[0].Timestamp)
	assert.Equal(t, end, points[2].Timestamp)
	assert.Equal(t, "3471.55", points[2].Price.String())

	_, err = src.GetHistory(context.Background(), "eth", market.Range{Days: 0, End: end})
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
