package expense

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bill is a vendor invoice or receipt document an expense may be linked to.
// The auto-authorization engine matches pending expenses against these.
type Bill struct {
	ID        string          `json:"bill_id"`
	ProjectID string          `json:"project_id"`
	VendorID  string          `json:"vendor_id"`
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
	BillDate  string          `json:"bill_date"` // YYYY-MM-DD
	CreatedAt time.Time       `json:"created_at"`
}

// DateProximityDays returns the absolute distance in days between the bill date
// and the given transaction date, or -1 when either date is missing or malformed.
func (b *Bill) DateProximityDays(txDate string) int {
	if b.BillDate == "" || txDate == "" {
		return -1
	}
	bd, err := time.Parse("2006-01-02", b.BillDate)
	if err != nil {
		return -1
	}
	td, err := time.Parse("2006-01-02", txDate)
	if err != nil {
		return -1
	}
	d := bd.Sub(td)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}
