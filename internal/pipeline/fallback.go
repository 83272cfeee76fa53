package pipeline

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"billscan/constants"
	"billscan/internal/classify"
	"billscan/internal/token"
)

// Last-resort extraction: labelled-amount patterns per type, evaluated in
// priority order. Each pattern captures the numeric part after a label.
type fallbackPattern struct {
	Type constants.AmountType
	Re   *regexp.Regexp
}

const amountGroup = `[₹$€£¥]?\s*(\d[\d,.]*)`

var fallbackPatterns = []fallbackPattern{
	{constants.TotalBill, regexp.MustCompile(`(?i)(?:grand\s*total|total|sub\s*total|subtotal|final\s*amount|net\s*amount|bill\s*amount|amount)\s*[:\-=>]*\s*` + amountGroup)},
	{constants.Paid, regexp.MustCompile(`(?i)(?:amount\s*paid|paid|received|payment\s*made|advance)\s*[:\-=>]*\s*` + amountGroup)},
	{constants.Due, regexp.MustCompile(`(?i)(?:balance\s*due|amount\s*due|due|pending|outstanding|payable)\s*[:\-=>]*\s*` + amountGroup)},
	{constants.Tax, regexp.MustCompile(`(?i)(?:sales\s*tax|service\s*tax|tax|gst|vat|cgst|sgst|igst)\s*[:\-=>]*\s*` + amountGroup)},
	{constants.Discount, regexp.MustCompile(`(?i)(?:discount|disc|concession)\s*[:\-=>]*\s*` + amountGroup)},
}

// reBareAmount finds currency-marked numbers when no label matched.
var reBareAmount = regexp.MustCompile(`[₹$€£¥]\s*(\d[\d,.]*)|(\d[\d,.]*)\s*[₹$€£¥]`)

const (
	labelledConfidence   = 0.6
	positionalConfidence = 0.5
)

// fallbackExtract is the error-exit path: a blunt keyword/regex sweep over
// the original text. Reports ok=false when it finds nothing, which is the
// terminal failure for the request.
func fallbackExtract(text string) (Result, bool) {
	if strings.TrimSpace(text) == "" {
		return Result{}, false
	}

	currency := token.DetectCurrency(text)
	if currency == "" {
		currency = constants.DefaultCurrency
	}

	seen := make(map[float64]struct{})
	var amounts []classify.ClassifiedAmount

	for _, fp := range fallbackPatterns {
		for _, m := range fp.Re.FindAllStringSubmatch(text, -1) {
			v, ok := parseFallbackAmount(m[1])
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			amounts = append(amounts, classify.ClassifiedAmount{
				Type:       fp.Type,
				Value:      v,
				Confidence: labelledConfidence,
				Source:     "text: '" + strings.TrimSpace(m[0]) + "'",
			})
		}
	}

	// no labels anywhere: collect currency-marked numbers and assign
	// types by rank (largest reads as the total)
	if len(amounts) == 0 {
		amounts = bareAmounts(text)
	}
	if len(amounts) == 0 {
		return Result{}, false
	}

	sortAmounts(amounts)
	return Result{
		Currency:   currency,
		Amounts:    amounts,
		Status:     constants.StatusOK,
		Confidence: labelledConfidence,
	}, true
}

func bareAmounts(text string) []classify.ClassifiedAmount {
	seen := make(map[float64]struct{})
	var values []float64
	var sources []string
	for _, m := range reBareAmount.FindAllStringSubmatch(text, -1) {
		g := m[1]
		if g == "" {
			g = m[2]
		}
		v, ok := parseFallbackAmount(g)
		if !ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
		sources = append(sources, strings.TrimSpace(m[0]))
	}
	if len(values) == 0 {
		return nil
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	// descending by value
	for i := 0; i < len(idx); i++ {
		for j := i + 1; j < len(idx); j++ {
			if values[idx[j]] > values[idx[i]] {
				idx[i], idx[j] = idx[j], idx[i]
			}
		}
	}

	byRank := []constants.AmountType{constants.TotalBill, constants.Paid, constants.Due}
	out := make([]classify.ClassifiedAmount, 0, len(values))
	for rank, i := range idx {
		typ := constants.Other
		if rank < len(byRank) {
			typ = byRank[rank]
		}
		out = append(out, classify.ClassifiedAmount{
			Type:       typ,
			Value:      values[i],
			Confidence: positionalConfidence,
			Source:     "text: '" + sources[i] + "'",
		})
	}
	return out
}

// parseFallbackAmount strips separators and rounds to a whole amount; the
// fallback is deliberately coarse.
func parseFallbackAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimRight(s, ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return math.Round(v), true
}
