package constants

// AmountType is the canonical classification for a detected amount.
type AmountType string

// Stable values (serialized into responses and history rows).
const (
	TotalBill AmountType = "total_bill"
	Paid      AmountType = "paid"
	Due       AmountType = "due"
	Tax       AmountType = "tax"
	Discount  AmountType = "discount"
	Other     AmountType = "other"
)

// TypePriority orders types from strongest to weakest signal. Classification
// scans keyword groups in this order and formatting sorts results by it.
var TypePriority = []AmountType{TotalBill, Paid, Due, Tax, Discount, Other}

// TypeWeights maps each type to its confidence weight. Used both for
// keyword-match confidence and for weighting the overall classification
// confidence.
var TypeWeights = map[AmountType]float64{
	TotalBill: 1.0,
	Paid:      0.85,
	Due:       0.8,
	Tax:       0.7,
	Discount:  0.7,
	Other:     0.3,
}

// PriorityRank returns the rank of t in TypePriority (lower is stronger).
// Unknown types rank after everything else.
func PriorityRank(t AmountType) int {
	for i, p := range TypePriority {
		if p == t {
			return i
		}
	}
	return len(TypePriority)
}

// Weight returns the confidence weight for t, defaulting to the weight of
// Other for unknown labels.
func Weight(t AmountType) float64 {
	if w, ok := TypeWeights[t]; ok {
		return w
	}
	return TypeWeights[Other]
}
