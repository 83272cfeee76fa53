package constants

// Status is the canonical outcome of a pipeline run.
type Status string

// Stable values (store these exact strings in responses and history rows).
const (
	StatusOK             Status = "ok"               // all amounts survived, confidence above threshold
	StatusWarning        Status = "warning"          // amounts filtered out or low confidence
	StatusError          Status = "error"            // nothing usable, fallback also failed
	StatusNoAmountsFound Status = "no_amounts_found" // guardrail exit: input too sparse/noisy
)

// Guardrail exit reasons.
const (
	ReasonTooNoisy       = "document too noisy"
	ReasonNoValidAmounts = "no valid amounts found after normalization"
)
