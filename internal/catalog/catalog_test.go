package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"lipia-service/internal/pkg/currency"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConverter(t *testing.T) *currency.Converter {
	t.Helper()
	conv, err := currency.NewConverter("USD", "KES", decimal.NewFromInt(150))
	require.NoError(t, err)
	return conv
}

func TestLoadDefaults(t *testing.T) {
	conv := testConverter(t)

	cat, err := Load("", conv)
	require.NoError(t, err)

	plans := cat.List()
	require.Len(t, plans, 3)

	normal, ok := cat.Get("normal")
	require.True(t, ok)
	assert.True(t, normal.CanonicalPrice.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, "USD", normal.CanonicalCurrency)
	assert.True(t, normal.LocalizedPrice.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, "KES", normal.LocalizedCurrency)

	premium, ok := cat.Get("premium_kes")
	require.True(t, ok)
	assert.True(t, premium.LocalizedPrice.Equal(decimal.NewFromInt(300000)))
}

func TestGetUnknownPlan(t *testing.T) {
	cat, err := Load("", testConverter(t))
	require.NoError(t, err)

	_, ok := cat.Get("enterprise")
	assert.False(t, ok)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	payload := `[
		{
			"id": "starter",
			"display_name": "Starter",
			"canonical_price": "100",
			"canonical_currency": "USD",
			"localized_price": "15000",
			"localized_currency": "KES",
			"interval": "year",
			"features": ["Live session access"]
		}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	cat, err := Load(path, testConverter(t))
	require.NoError(t, err)

	starter, ok := cat.Get("starter")
	require.True(t, ok)
	assert.Equal(t, "Starter", starter.DisplayName)
	assert.True(t, starter.CanonicalPrice.Equal(decimal.NewFromInt(100)))
}

func TestLoadRejectsPriceDrift(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	// 140000 KES / 150 = 933.33 USD, well over one minor unit away from 1000.
	payload := `[
		{
			"id": "drifty",
			"display_name": "Drifty",
			"canonical_price": "1000",
			"canonical_currency": "USD",
			"localized_price": "140000",
			"localized_currency": "KES",
			"interval": "month",
			"features": []
		}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	_, err := Load(path, testConverter(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "drifty")
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	payload := `[
		{"id": "p", "display_name": "A", "canonical_price": "100", "canonical_currency": "USD",
		 "localized_price": "15000", "localized_currency": "KES", "interval": "month", "features": []},
		{"id": "p", "display_name": "B", "canonical_price": "200", "canonical_currency": "USD",
		 "localized_price": "30000", "localized_currency": "KES", "interval": "month", "features": []}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	_, err := Load(path, testConverter(t))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownInterval(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.json")
	payload := `[
		{"id": "w", "display_name": "Weekly", "canonical_price": "100", "canonical_currency": "USD",
		 "localized_price": "15000", "localized_currency": "KES", "interval": "week", "features": []}
	]`
	require.NoError(t, os.WriteFile(path, []byte(payload), 0o600))

	_, err := Load(path, testConverter(t))
	assert.Error(t, err)
}
