package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"billscan/constants"
	"billscan/internal/extract"
)

// ParseResponse turns raw model output into a partial result. The content
// is validated strictly first; when that fails a lenient sanitize pass
// repairs the usual model quirks (code fences, stringly-typed numbers,
// stray keys, off-enum types) and validation runs once more before giving
// up. Returns the sanitized field names that were touched.
func ParseResponse(raw string) (extract.PartialResult, []string, error) {
	content := stripCodeFences(raw)
	schema := BuildAmountsJSONSchema()

	var dropped []string
	if err := ValidateJSONAgainstSchema(schema, []byte(content)); err != nil {
		cleaned, d, sErr := sanitize([]byte(content))
		if sErr != nil {
			return extract.PartialResult{}, nil, fmt.Errorf("sanitize: %w", sErr)
		}
		if vErr := ValidateJSONAgainstSchema(schema, cleaned); vErr != nil {
			return extract.PartialResult{}, d, fmt.Errorf("schema validation failed: %w", vErr)
		}
		content = string(cleaned)
		dropped = d
	}

	var out extract.PartialResult
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return extract.PartialResult{}, dropped, fmt.Errorf("unmarshal result: %w", err)
	}
	return out, dropped, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// sanitize repairs a near-miss response document:
//   - coerces string/number mismatches on "value" and "confidence"
//   - uppercases and defaults the currency code
//   - maps off-enum amount types to "other", drops unparseable entries
//   - removes unknown keys (additionalProperties friendliness)
//   - defaults a missing status from the amounts list
func sanitize(doc []byte) ([]byte, []string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, nil, err
	}

	var dropped []string

	cur, _ := m["currency"].(string)
	cur = strings.ToUpper(strings.TrimSpace(cur))
	if len(cur) != 3 {
		if cur != "" {
			dropped = append(dropped, "currency("+cur+")")
		}
		cur = constants.DefaultCurrency
	}
	m["currency"] = cur

	rawAmounts, _ := m["amounts"].([]any)
	amounts := make([]any, 0, len(rawAmounts))
	for i, ra := range rawAmounts {
		entry, ok := ra.(map[string]any)
		if !ok {
			dropped = append(dropped, fmt.Sprintf("amounts[%d](type)", i))
			continue
		}

		v, ok := coerceNumber(entry["value"])
		if !ok {
			dropped = append(dropped, fmt.Sprintf("amounts[%d].value", i))
			continue
		}

		t, _ := entry["type"].(string)
		t = strings.ToLower(strings.TrimSpace(t))
		if _, known := constants.TypeWeights[constants.AmountType(t)]; !known {
			dropped = append(dropped, fmt.Sprintf("amounts[%d].type(%s)", i, t))
			t = string(constants.Other)
		}

		clean := map[string]any{"type": t, "value": v}
		if s, ok := entry["source"].(string); ok && strings.TrimSpace(s) != "" {
			clean["source"] = strings.TrimSpace(s)
		}
		if c, ok := coerceNumber(entry["confidence"]); ok && c >= 0 && c <= 1 {
			clean["confidence"] = c
		}
		amounts = append(amounts, clean)
	}
	m["amounts"] = amounts

	status, _ := m["status"].(string)
	status = strings.ToLower(strings.TrimSpace(status))
	switch constants.Status(status) {
	case constants.StatusOK, constants.StatusWarning, constants.StatusError, constants.StatusNoAmountsFound:
	default:
		if status != "" {
			dropped = append(dropped, "status("+status+")")
		}
		if len(amounts) > 0 {
			status = string(constants.StatusOK)
		} else {
			status = string(constants.StatusNoAmountsFound)
		}
	}
	m["status"] = status

	for k := range m {
		switch k {
		case "currency", "amounts", "status":
		default:
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	b, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, err
	}
	return b, dropped, nil
}

func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		s = strings.Trim(s, "₹$€£¥ ")
		s = strings.ReplaceAll(s, ",", "")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
