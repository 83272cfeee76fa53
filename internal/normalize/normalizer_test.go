package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToken(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		wantValue   float64
		wantChanges int
	}{
		{"clean integer is untouched", "1000", 1000, 0},
		{"lowercase l reads as one", "l200", 1200, 1},
		{"double O confusion", "4O0O", 4000, 2},
		{"currency prefix trims once", "Rs. 1,200.50", 1200.50, 1},
		{"rupee symbol is stripped silently", "₹1200", 1200, 0},
		{"comma grouping", "12,345", 12345, 0},
		{"european decimal comma", "1234,56", 1234.56, 0},
		{"dot grouping with two groups", "1.234.567", 1234567, 0},
		{"single dot stays decimal", "1.5", 1.5, 0},
		{"spaces inside digit run", "1 200", 1200, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Token(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantValue, got.Value)
			assert.Equal(t, tt.wantChanges, got.Changes)
		})
	}
}

func TestTokenUnrepairable(t *testing.T) {
	assert.Nil(t, Token("abc"))
	assert.Nil(t, Token(""))
	assert.Nil(t, Token("--"))
}

func TestTokenSuspiciousMagnitude(t *testing.T) {
	got := Token("2000000000")
	require.NotNil(t, got)
	assert.Equal(t, float64(2_000_000_000), got.Value)
	assert.Len(t, got.Warnings, 1)
}

func TestTokens(t *testing.T) {
	t.Run("clean batch has full confidence", func(t *testing.T) {
		res := Tokens([]string{"1000", "200"})
		assert.Equal(t, []float64{1000, 200}, res.NormalizedAmounts)
		assert.Equal(t, 1.0, res.Confidence)
		assert.Empty(t, res.Substitutions)
	})

	t.Run("repairs lower confidence", func(t *testing.T) {
		res := Tokens([]string{"l200", "4O0O"})
		assert.Equal(t, []float64{1200, 4000}, res.NormalizedAmounts)
		// 3 changes over 2 amounts: 1.0 - 1.5*0.15 = 0.775 -> 0.78
		assert.Equal(t, 0.78, res.Confidence)
		assert.Len(t, res.Substitutions, 2)
	})

	t.Run("percent and non numeric tokens are skipped", func(t *testing.T) {
		res := Tokens([]string{"10%", "abc", "500"})
		assert.Equal(t, []float64{500}, res.NormalizedAmounts)
		assert.Equal(t, 1.0, res.Confidence)
	})

	t.Run("empty batch reports zero confidence", func(t *testing.T) {
		res := Tokens(nil)
		assert.NotNil(t, res.NormalizedAmounts)
		assert.Empty(t, res.NormalizedAmounts)
		assert.Equal(t, 0.0, res.Confidence)
	})

	t.Run("output never exceeds input length", func(t *testing.T) {
		raw := []string{"1000", "l200", "10%", "garbage", "₹500"}
		res := Tokens(raw)
		assert.LessOrEqual(t, len(res.NormalizedAmounts), len(raw))
	})
}

func TestCalculateConfidenceBounds(t *testing.T) {
	// heavy repair work bottoms out at 0.1
	assert.Equal(t, 0.1, calculateConfidence(1, 10, 10))
	assert.Equal(t, 1.0, calculateConfidence(3, 0, 0))
}
