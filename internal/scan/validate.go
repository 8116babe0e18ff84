package scan

import "github.com/shopspring/decimal"

// centTolerance absorbs rounding noise when comparing sums against printed totals
var centTolerance = decimal.NewFromFloat(0.01)

// classifyTotals compares the sum of extracted line items against the totals
// detected on the receipt. The outcome is metadata for the human reviewer and
// never rejects a scan.
func classifyTotals(items []Item, total, subtotal decimal.Decimal) string {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(item.Amount)
	}

	switch {
	case total.IsPositive() && sum.Sub(total).Abs().LessThanOrEqual(centTolerance):
		return TotalMatchTotal
	case subtotal.IsPositive() && sum.Sub(subtotal).Abs().LessThanOrEqual(centTolerance):
		// Items cover the pre-tax subtotal; the tax line was not itemized
		return TotalMatchSubtotal
	case total.IsPositive() || subtotal.IsPositive():
		return TotalMatchMismatch
	default:
		return TotalMatchNone
	}
}
