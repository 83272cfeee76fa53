package normalize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Amount is a single normalized token: the parsed value plus an audit of
// how aggressively the raw token had to be repaired.
type Amount struct {
	Value    float64
	Changes  int
	Warnings []string
}

// Substitution is one audit-trail entry, recorded only for tokens that
// required repair. Feeds the confidence penalty.
type Substitution struct {
	Original   string `json:"original"`
	Normalized string `json:"normalized"`
	Changes    int    `json:"changes"`
}

// Result is the outcome of normalizing one batch of raw tokens.
type Result struct {
	NormalizedAmounts []float64      `json:"normalized_amounts"`
	Confidence        float64        `json:"normalization_confidence"`
	Substitutions     []Substitution `json:"substitutions,omitempty"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// Values above this are kept but flagged as a likely mis-parse.
const suspiciousMagnitude = 1_000_000_000

var (
	// Anchored trims for currency/label prefixes and unit/qualifier
	// suffixes. Each trim that alters the token counts as one change.
	rePrefixTrim = regexp.MustCompile(`(?i)^\s*(?:rs\.?|inr|usd|eur|gbp|jpy|rupees?|amount|total|paid|due|balance|bill)\s*[:\-=]?\s*`)
	reSuffixTrim = regexp.MustCompile(`(?i)\s*(?:%|/-|only|approx\.?|app?rox)\s*$`)

	reDigit = regexp.MustCompile(`\d`)
	// Dots used as thousands grouping: 1.234.567 style, two or more groups.
	reDotGrouped = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3}){2,}$`)
	// Lone comma followed by exactly two digits reads as a European decimal.
	reCommaDecimal = regexp.MustCompile(`^-?\d+,\d{2}$`)
)

// ocrSubstitutions maps characters tesseract commonly confuses with digits.
var ocrSubstitutions = map[rune]rune{
	'O': '0', 'o': '0',
	'l': '1', 'I': '1', '|': '1', '!': '1', 'i': '1',
	'B': '8',
	'S': '5', 's': '5',
	'Z': '2', 'z': '2',
	'G': '6',
	'D': '0',
}

var currencySymbols = map[rune]struct{}{
	'₹': {}, '$': {}, '€': {}, '£': {}, '¥': {},
}

// Token converts one raw token into a normalized amount. Returns nil when
// the token cannot be repaired into a finite number; a nil result drops the
// token without failing the batch.
func Token(raw string) *Amount {
	s := raw
	changes := 0
	var warnings []string

	// 1) anchored prefix/suffix trims
	if t := rePrefixTrim.ReplaceAllString(s, ""); t != s {
		s = t
		changes++
	}
	if t := reSuffixTrim.ReplaceAllString(s, ""); t != s {
		s = t
		changes++
	}

	// 2) OCR confusion repairs, preserving letters glued to a currency symbol
	s, subbed := fixOCRConfusions(s)
	changes += subbed

	// 3) drop everything that is not digit, dot, comma, or minus
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',', r == '-':
			b.WriteRune(r)
		}
	}
	s = b.String()

	// 4) separator disambiguation
	s = resolveSeparators(s)

	// 5) parse
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	if math.Abs(v) > suspiciousMagnitude {
		warnings = append(warnings, fmt.Sprintf("suspiciously large amount: %v", v))
	}

	return &Amount{Value: v, Changes: changes, Warnings: warnings}
}

// fixOCRConfusions applies the character substitution table. A letter
// immediately following a currency symbol is left alone so currency
// abbreviations glued to a number are not mangled.
func fixOCRConfusions(s string) (string, int) {
	var b strings.Builder
	changes := 0
	prev := rune(0)
	for _, r := range s {
		if r == ' ' {
			// OCR loves to split digit runs with spaces
			changes++
			prev = r
			continue
		}
		if sub, ok := ocrSubstitutions[r]; ok {
			if _, adj := currencySymbols[prev]; !adj {
				b.WriteRune(sub)
				changes++
				prev = r
				continue
			}
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String(), changes
}

// resolveSeparators decides what commas and dots mean in the cleaned string.
func resolveSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		// comma is thousands grouping, dot is the decimal point
		return strings.ReplaceAll(s, ",", "")
	case hasComma:
		if reCommaDecimal.MatchString(s) {
			return strings.ReplaceAll(s, ",", ".")
		}
		return strings.ReplaceAll(s, ",", "")
	case hasDot && reDotGrouped.MatchString(s):
		// 1.234.567 style grouping
		return strings.ReplaceAll(s, ".", "")
	default:
		return s
	}
}

// Tokens normalizes a batch of raw tokens. Percent-suffixed tokens and
// tokens with no digit at all are skipped up front; individual parse
// failures drop the token without aborting the batch.
func Tokens(rawTokens []string) Result {
	res := Result{NormalizedAmounts: []float64{}}

	totalChanges := 0
	totalWarnings := 0
	for _, raw := range rawTokens {
		if strings.Contains(raw, "%") || !reDigit.MatchString(raw) {
			continue
		}
		amt := Token(raw)
		if amt == nil {
			continue
		}
		res.NormalizedAmounts = append(res.NormalizedAmounts, amt.Value)
		totalChanges += amt.Changes
		totalWarnings += len(amt.Warnings)
		res.Warnings = append(res.Warnings, amt.Warnings...)
		if amt.Changes > 0 || len(amt.Warnings) > 0 {
			res.Substitutions = append(res.Substitutions, Substitution{
				Original:   raw,
				Normalized: strconv.FormatFloat(amt.Value, 'f', -1, 64),
				Changes:    amt.Changes,
			})
		}
	}

	res.Confidence = calculateConfidence(len(res.NormalizedAmounts), totalChanges, totalWarnings)
	return res
}

// calculateConfidence starts from 1.0 and pays a penalty for the average
// repair work per amount. An empty batch reports 0, not 1.0: "nothing to
// normalize" must look like failure to the downstream guardrails.
func calculateConfidence(amounts, changes, warnings int) float64 {
	if amounts == 0 {
		return 0
	}
	avgChanges := float64(changes) / float64(amounts)
	avgWarnings := float64(warnings) / float64(amounts)
	conf := 1.0 - avgChanges*0.15 - avgWarnings*0.10
	if conf < 0.1 {
		conf = 0.1
	}
	if conf > 1.0 {
		conf = 1.0
	}
	return math.Round(conf*100) / 100
}
