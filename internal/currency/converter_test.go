package currency

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToLocal(t *testing.T) {
	got, err := ToLocal(decimal.RequireFromString("13.00"), decimal.RequireFromString("45.00"))
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("585")), "got %s", got)
}

func TestConversionRejectsInvalidRate(t *testing.T) {
	for _, rate := range []string{"0", "-1", "-0.01"} {
		_, err := ToLocal(decimal.NewFromInt(10), decimal.RequireFromString(rate))
		assert.ErrorIs(t, err, ErrInvalidRate, "ToLocal with rate %s", rate)

		_, err = ToUSD(decimal.NewFromInt(10), decimal.RequireFromString(rate))
		assert.ErrorIs(t, err, ErrInvalidRate, "ToUSD with rate %s", rate)
	}
}

func TestConversionRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		usd := decimal.New(rng.Int63n(1_000_000), -2)
		rate := decimal.New(rng.Int63n(10_000)+1, -2)

		local, err := ToLocal(usd, rate)
		require.NoError(t, err)
		back, err := ToUSD(local, rate)
		require.NoError(t, err)

		assert.True(t, back.Equal(usd), "usd=%s rate=%s back=%s", usd, rate, back)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$13.00", Format(decimal.RequireFromString("13"), USD))
	assert.Equal(t, "$1,234.57", Format(decimal.RequireFromString("1234.567"), USD))
	assert.Equal(t, "$0.00", Format(decimal.Zero, USD))
}
