package classify

import (
	"math"
	"strconv"
	"strings"

	"billscan/constants"
)

// ClassifiedAmount is one amount with its semantic role and the textual
// evidence that earned it.
type ClassifiedAmount struct {
	Type       constants.AmountType `json:"type"`
	Value      float64              `json:"value"`
	Confidence float64              `json:"confidence"`
	Source     string               `json:"source"`
}

// Result is the outcome of classifying one batch of amounts.
type Result struct {
	Amounts    []ClassifiedAmount `json:"amounts"`
	Confidence float64            `json:"confidence"`
}

// contextWindow is the number of words taken on each side of an occurrence.
const contextWindow = 5

// snippetRadius is the number of characters of provenance kept around a
// match before widening to whole-word boundaries.
const snippetRadius = 30

const (
	sourceNoMatch   = "No matching text found for amount"
	partialDiscount = 0.8
)

// keywordEntry binds one amount type to its trigger words and match weight.
// Entries are scanned in this order; it intentionally ranks discount ahead
// of tax, which differs from the response sort order.
type keywordEntry struct {
	Type     constants.AmountType
	Keywords []string
	Weight   float64
}

var keywordTable = []keywordEntry{
	{constants.TotalBill, []string{"total", "subtotal", "amount", "amt", "bill", "net", "grand"}, constants.TypeWeights[constants.TotalBill]},
	{constants.Paid, []string{"paid", "received", "payment", "deposit", "advance"}, constants.TypeWeights[constants.Paid]},
	{constants.Due, []string{"due", "balance", "pending", "payable", "outstanding"}, constants.TypeWeights[constants.Due]},
	{constants.Discount, []string{"discount", "concession", "deduction", "rebate", "off"}, constants.TypeWeights[constants.Discount]},
	{constants.Tax, []string{"tax", "gst", "vat", "cgst", "sgst", "igst", "cess"}, constants.TypeWeights[constants.Tax]},
}

// contextWord is one deduplicated window word with its distance (in words)
// from the amount occurrence.
type contextWord struct {
	word string
	dist int
}

// Amounts assigns a semantic type to each value using keyword context from
// the source text. Values are processed in the order received; position in
// the narrative matters, so they are never re-sorted here.
func Amounts(text string, values []float64) Result {
	res := Result{Amounts: make([]ClassifiedAmount, 0, len(values))}
	lower := strings.ToLower(text)

	for _, v := range values {
		res.Amounts = append(res.Amounts, classifyOne(text, lower, v))
	}
	res.Confidence = OverallConfidence(res.Amounts)
	return res
}

func classifyOne(text, lower string, value float64) ClassifiedAmount {
	valStr := strconv.FormatFloat(value, 'f', -1, 64)
	idx := findOccurrence(lower, valStr)
	if idx < 0 {
		return ClassifiedAmount{
			Type:       constants.Other,
			Value:      value,
			Confidence: 0.5,
			Source:     sourceNoMatch,
		}
	}

	words := windowWords(lower, idx, idx+len(valStr))
	typ, conf := scoreContext(words)
	return ClassifiedAmount{
		Type:       typ,
		Value:      value,
		Confidence: conf,
		Source:     "text: '" + snippet(text, idx, len(valStr)) + "'",
	}
}

// findOccurrence locates the first occurrence of valStr that stands on its
// own rather than inside a longer digit run ("200" inside "1200" does not
// count while a standalone "200" exists). Falls back to the first raw
// occurrence when no standalone one exists; -1 when absent entirely.
func findOccurrence(lower, valStr string) int {
	first := -1
	for from := 0; ; {
		i := strings.Index(lower[from:], valStr)
		if i < 0 {
			break
		}
		i += from
		if first < 0 {
			first = i
		}
		beforeOK := i == 0 || !isDigitOrSep(lower[i-1])
		after := i + len(valStr)
		afterOK := after >= len(lower) || !isDigit(lower[after])
		if beforeOK && afterOK {
			return i
		}
		from = i + 1
	}
	return first
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isDigitOrSep(b byte) bool {
	return isDigit(b) || b == '.' || b == ','
}

// windowWords returns the deduplicated words within contextWindow words on
// either side of the [start,end) occurrence, each with its word distance.
func windowWords(lower string, start, end int) []contextWord {
	fields := strings.Fields(lower)

	// map the occurrence back onto a word index
	occ := 0
	pos := 0
	for i, f := range fields {
		wordStart := strings.Index(lower[pos:], f) + pos
		wordEnd := wordStart + len(f)
		if start < wordEnd && end > wordStart {
			occ = i
			break
		}
		pos = wordEnd
	}

	lo := occ - contextWindow
	if lo < 0 {
		lo = 0
	}
	hi := occ + contextWindow + 1
	if hi > len(fields) {
		hi = len(fields)
	}

	seen := make(map[string]int, hi-lo)
	out := make([]contextWord, 0, hi-lo)
	for i, w := range fields[lo:hi] {
		w = strings.Trim(w, ":;,.!?()[]{}'\"|-")
		if w == "" {
			continue
		}
		dist := lo + i - occ
		if dist < 0 {
			dist = -dist
		}
		if j, ok := seen[w]; ok {
			if dist < out[j].dist {
				out[j].dist = dist
			}
			continue
		}
		seen[w] = len(out)
		out = append(out, contextWord{word: w, dist: dist})
	}
	return out
}

// scoreContext scores the window against the keyword table. Exact word
// matches always beat partial matches: exact keyword presence is a much
// stronger signal than substring containment ("totally" must never outrank
// a literal "total"). Among exact matches the one closest to the amount
// wins, with table order breaking distance ties; among partial matches the
// highest-confidence one wins, ties again by table order.
func scoreContext(words []contextWord) (constants.AmountType, float64) {
	bestType := constants.Other
	bestDist := -1
	for _, entry := range keywordTable {
		for _, kw := range entry.Keywords {
			for _, cw := range words {
				if cw.word != kw {
					continue
				}
				if bestDist < 0 || cw.dist < bestDist {
					bestDist = cw.dist
					bestType = entry.Type
				}
			}
		}
	}
	if bestDist >= 0 {
		return bestType, constants.TypeWeights[bestType]
	}

	bestConf := 0.0
	for _, entry := range keywordTable {
		for _, kw := range entry.Keywords {
			for _, cw := range words {
				if strings.Contains(cw.word, kw) {
					if c := entry.Weight * partialDiscount; c > bestConf {
						bestType = entry.Type
						bestConf = c
					}
				}
			}
		}
	}
	if bestConf > 0 {
		return bestType, math.Round(bestConf*100) / 100
	}
	return constants.Other, 0.5
}

// snippet extracts ±snippetRadius characters around the match, widened out
// to whole-word boundaries, collapsed to single spaces.
func snippet(text string, idx, matchLen int) string {
	lo := idx - snippetRadius
	if lo < 0 {
		lo = 0
	}
	hi := idx + matchLen + snippetRadius
	if hi > len(text) {
		hi = len(text)
	}
	for lo > 0 && !isSpace(text[lo-1]) {
		lo--
	}
	for hi < len(text) && !isSpace(text[hi]) {
		hi++
	}
	return strings.Join(strings.Fields(text[lo:hi]), " ")
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// OverallConfidence is the mean of per-item confidences weighted by each
// type's table weight; weakly-typed items drag the result down less than
// strongly-typed ones lift it. Returns 0 for an empty list.
func OverallConfidence(items []ClassifiedAmount) float64 {
	if len(items) == 0 {
		return 0
	}
	var sum, weights float64
	for _, it := range items {
		w := constants.Weight(it.Type)
		sum += it.Confidence * w
		weights += w
	}
	if weights == 0 {
		return 0
	}
	return math.Round(sum/weights*100) / 100
}
