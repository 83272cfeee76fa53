package llm

// buildPrompt asks for structured amounts with a strict JSON contract. The
// example doubles as the output shape; models follow it far more reliably
// than prose instructions alone.
func buildPrompt(text string) string {
	return `Extract financial amounts from this medical bill or receipt. Return ONLY valid JSON:

{
  "currency": "INR",
  "amounts": [
    {"type": "total_bill", "value": 1200, "source": "text: 'Total: INR 1200'"},
    {"type": "paid", "value": 1000, "source": "text: 'Paid: 1000'"},
    {"type": "due", "value": 200, "source": "text: 'Due: 200'"}
  ],
  "status": "ok"
}

RULES:
1. Currency: 3-letter ISO 4217 code; use INR unless clearly specified otherwise
2. Types: only "total_bill", "paid", "due", "tax", "discount", "other"
3. Values: numbers only, remove symbols and thousand separators
4. Source: quote the exact text snippet each amount came from
5. Status: "ok" when amounts were found, "no_amounts_found" otherwise
6. Never invent amounts that are not in the document

DOCUMENT:
` + text
}
