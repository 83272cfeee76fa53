package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b(20\d{2}[-/.]\d{1,2}[-/.]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]20\d{2})\b`)
	reCurr   = regexp.MustCompile(`\b(inr|usd|eur|gbp|jpy|rs\.?|rupees?)\b|[₹$£€¥]`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})?\b|\b\d+\.\d{2}\b`)
	reLabel  = regexp.MustCompile(`\b(total|paid|due|balance|tax|gst|discount|bill)\b`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }
func hasLabelPattern(s string) bool    { return reLabel.MatchString(s) }

// naive heuristic confidence based on decoded text characteristics
func heuristicConfidence(txt string) float64 {
	// boost for common bill artifacts: amount-ish runs, currency marks,
	// billing labels, a date
	txtL := strings.ToLower(txt)
	score := 0.2 // base
	if hasAmountPattern(txtL) {
		score += 0.2
	}
	if hasCurrencyPattern(txtL) {
		score += 0.15
	}
	if hasLabelPattern(txtL) {
		score += 0.15
	}
	if hasDatePattern(txtL) {
		score += 0.1
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
