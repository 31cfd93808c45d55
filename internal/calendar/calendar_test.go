package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf(t *testing.T) {
	caracas := time.FixedZone("VET", -4*3600)
	// 02:30 UTC on the 2nd is still the evening of the 1st in UTC-4.
	ts := time.Date(2025, 3, 2, 2, 30, 0, 0, time.UTC)

	assert.Equal(t, Day("2025-03-02"), DayOf(ts, time.UTC))
	assert.Equal(t, Day("2025-03-01"), DayOf(ts, caracas))
}

func TestParseDay(t *testing.T) {
	tests := []struct {
		in      string
		want    Day
		wantErr bool
	}{
		{in: "2025-07-01", want: "2025-07-01"},
		{in: "2025-7-1", want: "2025-07-01"},
		{in: " 2025-12-31 ", want: "2025-12-31"},
		{in: "31/12/2025", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDay(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestWithin(t *testing.T) {
	assert.True(t, Day("2025-01-01").Within("2025-01-01", "2025-01-31"))
	assert.True(t, Day("2025-01-31").Within("2025-01-01", "2025-01-31"))
	assert.False(t, Day("2025-02-01").Within("2025-01-01", "2025-01-31"))
	assert.False(t, Day("2024-12-31").Within("2025-01-01", "2025-01-31"))
}
