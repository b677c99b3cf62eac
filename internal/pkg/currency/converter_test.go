package currency

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConverter(t *testing.T) *Converter {
	t.Helper()
	conv, err := NewConverter("USD", "KES", decimal.NewFromInt(150))
	require.NoError(t, err)
	return conv
}

func TestNewConverterRejectsNonPositiveRate(t *testing.T) {
	_, err := NewConverter("USD", "KES", decimal.Zero)
	assert.Error(t, err)

	_, err = NewConverter("USD", "KES", decimal.NewFromInt(-5))
	assert.Error(t, err)
}

func TestToCanonicalFromLocalized(t *testing.T) {
	conv := newTestConverter(t)

	got, err := conv.ToCanonical(decimal.NewFromInt(300000), "KES")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(2000)), "got %s", got)
}

func TestToCanonicalPassThrough(t *testing.T) {
	conv := newTestConverter(t)

	got, err := conv.ToCanonical(decimal.NewFromInt(1000), "USD")
	require.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)))
}

func TestToCanonicalUnsupportedCurrency(t *testing.T) {
	conv := newTestConverter(t)

	_, err := conv.ToCanonical(decimal.NewFromInt(10), "EUR")
	assert.Error(t, err)
}

func TestToCanonicalRounding(t *testing.T) {
	conv := newTestConverter(t)

	// 100 KES / 150 = 0.666... -> 0.67
	got, err := conv.ToCanonical(decimal.NewFromInt(100), "KES")
	require.NoError(t, err)
	assert.Equal(t, "0.67", got.StringFixed(2))
}

func TestRoundTripWithinOneMinorUnit(t *testing.T) {
	conv := newTestConverter(t)

	prices := []decimal.Decimal{
		decimal.NewFromInt(500),
		decimal.NewFromInt(1000),
		decimal.NewFromInt(2000),
		decimal.NewFromFloat(19.99),
	}
	for _, price := range prices {
		localized := conv.ToLocalized(price)
		back, err := conv.ToCanonical(localized, "KES")
		require.NoError(t, err)
		assert.True(t, WithinOneMinorUnit(price, back),
			"round trip of %s drifted to %s", price, back)
	}
}

func TestWithinOneMinorUnit(t *testing.T) {
	assert.True(t, WithinOneMinorUnit(decimal.NewFromFloat(10.00), decimal.NewFromFloat(10.01)))
	assert.True(t, WithinOneMinorUnit(decimal.NewFromFloat(10.01), decimal.NewFromFloat(10.00)))
	assert.False(t, WithinOneMinorUnit(decimal.NewFromFloat(10.00), decimal.NewFromFloat(10.02)))
}
