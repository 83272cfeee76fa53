package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billscan/constants"
)

func TestFallbackExtractLabelled(t *testing.T) {
	res, ok := fallbackExtract("Grand Total: 1,500 Amount Paid: 1000 Balance Due: 500")
	require.True(t, ok)
	assert.Equal(t, constants.StatusOK, res.Status)
	require.Len(t, res.Amounts, 3)

	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
	assert.Equal(t, 1500.0, res.Amounts[0].Value)
	assert.Equal(t, constants.Paid, res.Amounts[1].Type)
	assert.Equal(t, 1000.0, res.Amounts[1].Value)
	assert.Equal(t, constants.Due, res.Amounts[2].Type)
	assert.Equal(t, 500.0, res.Amounts[2].Value)

	for _, a := range res.Amounts {
		assert.Equal(t, 0.6, a.Confidence)
	}
}

func TestFallbackExtractDeduplicatesValues(t *testing.T) {
	// 500 appears under two labels; the priority sweep keeps the first
	res, ok := fallbackExtract("Total: 500 Due: 500")
	require.True(t, ok)
	require.Len(t, res.Amounts, 1)
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
}

func TestFallbackExtractBareCurrencyAmounts(t *testing.T) {
	res, ok := fallbackExtract("receipt shows ₹300 and ₹1200 and ₹50")
	require.True(t, ok)
	require.Len(t, res.Amounts, 3)

	// ranked by descending value: largest reads as the total
	assert.Equal(t, constants.TotalBill, res.Amounts[0].Type)
	assert.Equal(t, 1200.0, res.Amounts[0].Value)
	assert.Equal(t, constants.Paid, res.Amounts[1].Type)
	assert.Equal(t, 300.0, res.Amounts[1].Value)
	assert.Equal(t, constants.Due, res.Amounts[2].Type)
	assert.Equal(t, 50.0, res.Amounts[2].Value)

	for _, a := range res.Amounts {
		assert.Equal(t, 0.5, a.Confidence)
	}
}

func TestFallbackExtractNothing(t *testing.T) {
	for _, text := range []string{"", "   ", "no amounts in this sentence"} {
		_, ok := fallbackExtract(text)
		assert.False(t, ok, "text=%q", text)
	}
}

func TestParseFallbackAmount(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1,500", 1500, true},
		{"1200.", 1200, true},
		{"99.6", 100, true}, // rounded to a whole amount
		{"0", 0, false},
		{"garbage", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseFallbackAmount(tt.in)
		assert.Equal(t, tt.wantOK, ok, "in=%q", tt.in)
		if ok {
			assert.Equal(t, tt.want, got, "in=%q", tt.in)
		}
	}
}
