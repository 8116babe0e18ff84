package scan

import "github.com/shopspring/decimal"

// Total match classifications comparing the line-item sum against totals
// printed on the receipt. Informational only; never rejects a scan.
const (
	TotalMatchTotal    = "total"    // items sum to the grand total
	TotalMatchSubtotal = "subtotal" // items sum to the pre-tax subtotal
	TotalMatchMismatch = "mismatch" // neither total matches
	TotalMatchNone     = "none"     // no total found to compare against
)

// Item is one draft expense line extracted from a receipt
type Item struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Account     string          `json:"account,omitempty"`
}

// Result is the transient output of one scan
type Result struct {
	Items            []Item          `json:"line_items"`
	ExtractionMethod string          `json:"extraction_method"` // native_text | local_ocr | vision
	Confidence       float64         `json:"confidence"`        // 0-100
	TotalMatchType   string          `json:"total_match_type"`
	DetectedTotal    decimal.Decimal `json:"detected_total"`
	DetectedSubtotal decimal.Decimal `json:"detected_subtotal"`
	DetectedTax      decimal.Decimal `json:"detected_tax"`
	Vendor           string          `json:"vendor,omitempty"`
	ReceiptDate      string          `json:"receipt_date,omitempty"`
}

// Extraction is the wire shape the language model returns. Amounts arrive as
// JSON numbers and are converted to decimals when the Result is assembled.
type Extraction struct {
	LineItems []ExtractedItem `json:"line_items"`
	Total     float64         `json:"total"`
	Subtotal  float64         `json:"subtotal"`
	Tax       float64         `json:"tax"`
	Vendor    string          `json:"vendor"`
	Date      string          `json:"date"`
}

// ExtractedItem is one line item as returned by the model
type ExtractedItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Account     string  `json:"account"`
}

// toItems converts the wire items to decimal-amount items
func (e *Extraction) toItems() []Item {
	items := make([]Item, 0, len(e.LineItems))
	for _, li := range e.LineItems {
		items = append(items, Item{
			Description: li.Description,
			Amount:      decimal.NewFromFloat(li.Amount).Round(2),
			Account:     li.Account,
		})
	}
	return items
}
