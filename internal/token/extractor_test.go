package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractNumericStrings(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "bill line with separators",
			text: "Total: INR 1,200.50 | Paid: 1000 | Due: 200",
			want: []string{"1,200.50", "1000", "200"},
		},
		{
			name: "currency symbols stay attached",
			text: "₹1200 and $45.99",
			want: []string{"₹1200", "$45.99"},
		},
		{
			name: "percent tokens are kept",
			text: "Discount: 10% on 500",
			want: []string{"10%", "500"},
		},
		{
			name: "no numbers",
			text: "no amounts here",
			want: []string{},
		},
		{
			name: "duplicates preserved in order",
			text: "100 then 200 then 100",
			want: []string{"100", "200", "100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractNumericStrings(tt.text)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectCurrency(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Total: ₹1200", "INR"},
		{"Total: Rs. 1200", "INR"},
		{"total inr 1200", "INR"},
		{"Total: $100", "USD"},
		{"price in usd only", "USD"},
		{"€50 lunch", "EUR"},
		{"£20", "GBP"},
		{"¥3000", "JPY"},
		{"no currency at all", ""},
		// INR wins over USD when both appear
		{"Rs 1200 ($15)", "INR"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectCurrency(tt.text), "text=%q", tt.text)
	}
}

func TestDetectCurrencyCaseRules(t *testing.T) {
	// textual codes are case-insensitive
	assert.Equal(t, "INR", DetectCurrency("amount in inr"))
	// "rs" must sit on a word boundary, not inside a word
	assert.Equal(t, "", DetectCurrency("parser errors everywhere"))
}
