package token

import (
	"regexp"
	"strings"
)

// reNumeric captures one amount-looking run: an optional currency symbol,
// digits with optional comma/dot groups, and an optional percent suffix.
// Tokens come back in source order; later stages rely on that ordering.
var reNumeric = regexp.MustCompile(`[₹$€£¥]?\s?\d+(?:[.,]\d+)*%?`)

// currencyProbe tests one currency signal. Symbols match case-sensitively,
// textual codes on word boundaries, case-insensitively.
type currencyProbe struct {
	code    string
	symbols []string
	codes   *regexp.Regexp
}

// Probes are ordered by priority: INR variants first (primary domain is
// INR-denominated documents), then USD, EUR, GBP, JPY.
var currencyProbes = []currencyProbe{
	{code: "INR", symbols: []string{"₹", "₹"}, codes: regexp.MustCompile(`(?i)\b(rs\.?|inr|rupees?)\b`)},
	{code: "USD", symbols: []string{"$"}, codes: regexp.MustCompile(`(?i)\busd\b`)},
	{code: "EUR", symbols: []string{"€"}, codes: regexp.MustCompile(`(?i)\beur\b`)},
	{code: "GBP", symbols: []string{"£"}, codes: regexp.MustCompile(`(?i)\bgbp\b`)},
	{code: "JPY", symbols: []string{"¥"}, codes: regexp.MustCompile(`(?i)\bjpy\b`)},
}

// ExtractNumericStrings scans text left-to-right and returns every
// numeric-looking token, in order of appearance, without deduplication.
// Percent-suffixed tokens are kept here; the normalizer drops them.
func ExtractNumericStrings(text string) []string {
	matches := reNumeric.FindAllString(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m))
	}
	return out
}

// DetectCurrency returns the ISO 4217 code of the first currency signal
// found, scanning probes in priority order. Empty string when none match.
func DetectCurrency(text string) string {
	for _, p := range currencyProbes {
		for _, sym := range p.symbols {
			if strings.Contains(text, sym) {
				return p.code
			}
		}
		if p.codes != nil && p.codes.MatchString(text) {
			return p.code
		}
	}
	return ""
}
