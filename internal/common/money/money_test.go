package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddSub(t *testing.T) {
	a := New(1000, USD)
	b := New(250, USD)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.AmountMinor)

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, int64(750), diff.AmountMinor)
}

func TestCurrencyMismatch(t *testing.T) {
	a := New(1000, USD)
	b := New(250, EUR)

	_, err := a.Add(b)
	assert.Error(t, err)

	_, err = a.Sub(b)
	assert.Error(t, err)
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		amount   int64
		bps      int64
		expected int64
	}{
		{"ten percent", 10000, 1000, 1000},
		{"default rate on odd total", 9999, 1000, 1000},
		{"zero rate", 10000, 0, 0},
		{"full rate", 10000, 10000, 10000},
		{"rounds half up", 5, 1000, 1},
		{"rounds to zero", 4, 1000, 0},
		{"five percent", 2499, 500, 125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.amount, USD)
			got := m.Percentage(tt.bps)
			assert.Equal(t, tt.expected, got.AmountMinor)
			assert.Equal(t, USD, got.Currency)
		})
	}
}

func TestComparisons(t *testing.T) {
	a := New(100, USD)
	b := New(200, USD)

	assert.True(t, b.GreaterThan(a))
	assert.True(t, a.LessThan(b))
	assert.True(t, a.Equal(New(100, USD)))
	assert.False(t, a.Equal(New(100, EUR)))
}

func TestSigns(t *testing.T) {
	assert.True(t, New(1, USD).IsPositive())
	assert.True(t, New(-1, USD).IsNegative())
	assert.True(t, Zero(USD).IsZero())
	assert.False(t, Zero(USD).IsPositive())
}

func TestJSONRoundTrip(t *testing.T) {
	m := New(12345, KES)

	data, err := json.Marshal(m)
	require.NoError(t, err)

	var decoded Money
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, m, decoded)
}
