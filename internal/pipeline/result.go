package pipeline

import (
	"billscan/constants"
	"billscan/internal/classify"
)

// Result is the JSON-serializable outcome of one pipeline run.
//
// Invariants: status error or no_amounts_found implies an empty amounts
// list; status warning implies a non-empty warnings list.
type Result struct {
	Currency string                      `json:"currency"`
	Amounts  []classify.ClassifiedAmount `json:"amounts"`
	Status   constants.Status            `json:"status"`
	Warnings []string                    `json:"_warnings,omitempty"`
	Reason   string                      `json:"reason,omitempty"`
	Error    string                      `json:"error,omitempty"`

	// Confidence is the blended self-assessment across stages.
	Confidence float64 `json:"confidence"`
}

func guardrailResult(currency, reason string) Result {
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return Result{
		Currency: currency,
		Amounts:  []classify.ClassifiedAmount{},
		Status:   constants.StatusNoAmountsFound,
		Reason:   reason,
	}
}

func errorResult(currency, msg string) Result {
	if currency == "" {
		currency = constants.DefaultCurrency
	}
	return Result{
		Currency: currency,
		Amounts:  []classify.ClassifiedAmount{},
		Status:   constants.StatusError,
		Error:    msg,
	}
}
