package scan

import "fmt"

const extractionSystemPrompt = "You are an expert at reading construction-industry receipts and vendor invoices. " +
	"You extract expense line items with perfect accuracy. Always respond with valid JSON."

const extractionSchema = `Return a JSON object with this exact structure:
{
  "line_items": [{"description": "string", "amount": number, "account": "string"}],
  "total": number,
  "subtotal": number,
  "tax": number,
  "vendor": "string",
  "date": "YYYY-MM-DD"
}

RULES:
- Extract EXACTLY what is printed. Do not guess or invent values.
- One line_items entry per purchased item or service line.
- "account" is your best suggested expense category (e.g. "Materials", "Equipment Rental", "Subcontractor", "Fuel"); use "" if unclear.
- "total" is the grand total including tax; "subtotal" the pre-tax sum; "tax" the tax line. Use 0 for any amount not printed.
- Amounts are plain numbers without currency symbols.
- If a field is not visible, use empty string "" or 0.`

// buildTextPrompt assembles the extraction prompt for OCR/native text input.
// The correction context, when present, is passed through verbatim.
func buildTextPrompt(text, correction string) string {
	prompt := fmt.Sprintf(`Extract all expense line items from this receipt text:

%s

%s`, text, extractionSchema)

	if correction != "" {
		prompt += "\n\nA previous extraction of this receipt was corrected by a human. Apply this correction context:\n" + correction
	}
	return prompt
}

// buildVisionPrompt assembles the extraction prompt for direct image input
func buildVisionPrompt(correction string) string {
	prompt := "Carefully examine this receipt or invoice image and extract ALL expense line items.\n\n" + extractionSchema

	if correction != "" {
		prompt += "\n\nA previous extraction of this receipt was corrected by a human. Apply this correction context:\n" + correction
	}
	return prompt
}
