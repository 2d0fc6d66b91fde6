package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/pkg/errors"
)

func TestBuildSchedule(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		profile   Profile
		purchases int
		interval  int
		last      string
	}{
		{Conservative, 12, 30, "83.33"},
		{Balanced, 6, 60, "166.67"},
		{Aggressive, 2, 180, "500"},
	}

	for _, tt := range tests {
		t.Run(string(tt.profile), func(t *testing.T) {
			s, err := BuildSchedule(d("1000"), tt.profile, start)
			require.NoError(t, err)

			require.Len(t, s.Purchases, tt.purchases)
			assert.Equal(t, tt.interval, s.IntervalDays)
			assert.Equal(t, start, s.Purchases[0].Date)
			assert.Equal(t, start.AddDate(0, 0, tt.interval), s.Purchases[1].Date)
			assert.True(t, s.Purchases[tt.purchases-1].Amount.Equal(d(tt.last)), s.Purchases[tt.purchases-1].Amount.String())

			total := d("0")
			for _, p := range s.Purchases {
				total = total.Add(p.Amount)
			}
			assert.True(t, total.Equal(d("1000")))
		})
	}
}

func TestBuildSchedule_SmallTotals(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, total := range []string{"0.06", "0.01", "0.019", "1.01"} {
		t.Run(total, func(t *testing.T) {
			s, err := BuildSchedule(d(total), Conservative, start)
			require.NoError(t, err)

			sum := d("0")
			for i, p := range s.Purchases {
				assert.False(t, p.Amount.IsNegative(), "purchase %d: %s", i, p.Amount)
				sum = sum.Add(p.Amount)
			}
			assert.True(t, sum.Equal(d(total)), sum.String())
		})
	}
}

func TestBuildSchedule_Invalid(t *testing.T) {
	_, err := BuildSchedule(d("0"), Balanced, time.Now())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))

	_, err = BuildSchedule(d("10"), Profile("other"), time.Now())
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}
