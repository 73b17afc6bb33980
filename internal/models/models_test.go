package models

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPricePoint_JSON(t *testing.T) {
	var series []PricePoint
	err := json.Unmarshal([]byte(`[[1711929600000,5712345.67],[1711933200000,5720000]]`), &series)
	require.NoError(t, err)

	require.Len(t, series, 2)
	assert.Equal(t, int64(1711929600000), series[0].Timestamp)
	assert.Equal(t, 5712345.67, series[0].Price)
	assert.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), series[0].Time())

	out, err := json.Marshal(series)
	require.NoError(t, err)
	assert.JSONEq(t, `[[1711929600000,5712345.67],[1711933200000,5720000]]`, string(out))
}

func TestPricePoint_BadTuple(t *testing.T) {
	var p PricePoint
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"t":1}`), &p))
}

func TestCacheEntry_Fresh(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	entry, err := NewCacheEntry(123.4, now)
	require.NoError(t, err)

	assert.True(t, entry.Fresh(now, LivePriceTTL))
	assert.True(t, entry.Fresh(now.Add(59*time.Second), LivePriceTTL))
	assert.False(t, entry.Fresh(now.Add(60*time.Second), LivePriceTTL))

	var price float64
	require.NoError(t, entry.Decode(&price))
	assert.Equal(t, 123.4, price)
}

func TestWelcomeName(t *testing.T) {
	assert.Equal(t, "Asha", User{Email: "asha@example.com", DisplayName: "Asha"}.WelcomeName())
	assert.Equal(t, "asha", User{Email: "asha@example.com"}.WelcomeName())
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "₹1,234.50", FormatMoney(decimal.RequireFromString("1234.5"), "inr"))
	assert.Equal(t, "$0.13", FormatMoney(decimal.RequireFromString("0.125"), "USD"))
	assert.Equal(t, "N/A", FormatPrice(0, "inr"))
	assert.Equal(t, "₹99.00", FormatPrice(99, "inr"))
}

func TestCatalog_ResolveAndDisplayName(t *testing.T) {
	c := NewCatalog()

	assert.Equal(t, "bitcoin", c.Resolve(" Bitcoin "))
	assert.Equal(t, "bitcoin", c.Resolve("BTC"))
	assert.Equal(t, "ethereum", c.Resolve("eth"))
	assert.Equal(t, "pepe", c.Resolve("PEPE"))

	assert.Equal(t, "Bitcoin", c.DisplayName("bitcoin"))
	assert.Equal(t, "Pepe", c.DisplayName("pepe"))
	assert.Equal(t, "", c.DisplayName(""))
}

func TestCatalog_LoadYAML(t *testing.T) {
	c := NewCatalog()

	n, err := c.LoadYAML("")
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = c.LoadYAML(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Zero(t, n)

	path := filepath.Join(t.TempDir(), "coins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coins:\n  - id: pepe\n    name: Pepe Coin\n    symbol: PEPE\n  - id: bitcoin\n    name: Bitcoin (BTC)\n    symbol: XBT\n"), 0o600))

	n, err = c.LoadYAML(path)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "Pepe Coin", c.DisplayName("pepe"))
	assert.Equal(t, "Bitcoin (BTC)", c.DisplayName("bitcoin"))
	assert.Equal(t, "bitcoin", c.Resolve("xbt"))
	assert.Equal(t, "bitcoin", c.Resolve("btc"))
}

func TestCatalog_LoadYAML_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coins.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coins:\n  - name: Nameless\n"), 0o600))

	_, err := NewCatalog().LoadYAML(path)
	assert.Error(t, err)
}
