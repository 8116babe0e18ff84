package expense

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single financial line item tied to a construction project.
//
// Two invariants hold after every accepted mutation:
//   - AuthStatus == (Status == StatusAuth); the boolean is legacy but kept in sync
//   - AuthorizedBy is non-empty iff Status == StatusAuth
type Expense struct {
	ID              string          `json:"expense_id"`
	ProjectID       string          `json:"project_id"`
	VendorID        string          `json:"vendor_id"`
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	LineDescription string          `json:"line_description"`
	TransactionDate string          `json:"transaction_date"` // YYYY-MM-DD
	TransactionType string          `json:"transaction_type"`
	PaymentMethodID string          `json:"payment_method_id"`
	BillReference   string          `json:"bill_reference,omitempty"`
	ReceiptURL      string          `json:"receipt_url,omitempty"`
	Status          Status          `json:"status"`
	AuthStatus      bool            `json:"auth_status"`
	AuthorizedBy    string          `json:"authorized_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// New builds a pending expense, validating required fields at the store boundary
func New(projectID, vendorID, accountID, description, txDate string, amount decimal.Decimal) (*Expense, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project_id is required", ErrValidation)
	}
	if strings.TrimSpace(description) == "" {
		return nil, fmt.Errorf("%w: line_description is required", ErrValidation)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if txDate != "" {
		if _, err := time.Parse("2006-01-02", txDate); err != nil {
			return nil, fmt.Errorf("%w: transaction_date must be YYYY-MM-DD", ErrValidation)
		}
	}

	return &Expense{
		ProjectID:       projectID,
		VendorID:        vendorID,
		AccountID:       accountID,
		Amount:          amount,
		LineDescription: description,
		TransactionDate: txDate,
		Status:          StatusPending,
		AuthStatus:      false,
	}, nil
}

// ApplyStatus sets the status and keeps the legacy fields consistent with it
func (e *Expense) ApplyStatus(s Status, actor string) {
	e.Status = s
	if s == StatusAuth {
		e.AuthStatus = true
		e.AuthorizedBy = actor
	} else {
		e.AuthStatus = false
		e.AuthorizedBy = ""
	}
}

// Patch carries a partial update to an expense. Nil pointers mean "leave unchanged".
type Patch struct {
	AccountID       *string
	Amount          *decimal.Decimal
	LineDescription *string
	TransactionDate *string
	TransactionType *string
	VendorID        *string
	PaymentMethodID *string
	BillReference   *string
	ReceiptURL      *string
	Status          *Status
}

// Validate applies the same field rules as New to the patched values, so the
// update path cannot store what the create path would reject
func (p Patch) Validate() error {
	if p.Amount != nil && p.Amount.IsNegative() {
		return fmt.Errorf("%w: amount must not be negative", ErrValidation)
	}
	if p.LineDescription != nil && strings.TrimSpace(*p.LineDescription) == "" {
		return fmt.Errorf("%w: line_description is required", ErrValidation)
	}
	if p.TransactionDate != nil && *p.TransactionDate != "" {
		if _, err := time.Parse("2006-01-02", *p.TransactionDate); err != nil {
			return fmt.Errorf("%w: transaction_date must be YYYY-MM-DD", ErrValidation)
		}
	}
	return nil
}

// FieldChange is one tracked-field difference produced by diffing a patch
// against the current row. Values are stringified for audit stability.
type FieldChange struct {
	Field    string
	OldValue string
	NewValue string
}

// tracked fields are the ones whose mutation is audit-worthy outside of drafting
var trackedFields = []string{
	"account_id", "amount", "line_description", "transaction_type",
	"vendor_id", "payment_method_id", "transaction_date",
}

// Diff returns one FieldChange per tracked field the patch actually changes.
// Untracked fields (bill_reference, receipt_url, status) never appear here.
func (e *Expense) Diff(p Patch) []FieldChange {
	var changes []FieldChange
	add := func(field, oldVal, newVal string) {
		if oldVal != newVal {
			changes = append(changes, FieldChange{Field: field, OldValue: oldVal, NewValue: newVal})
		}
	}

	if p.AccountID != nil {
		add("account_id", e.AccountID, *p.AccountID)
	}
	if p.Amount != nil {
		add("amount", e.Amount.String(), p.Amount.String())
	}
	if p.LineDescription != nil {
		add("line_description", e.LineDescription, *p.LineDescription)
	}
	if p.TransactionType != nil {
		add("transaction_type", e.TransactionType, *p.TransactionType)
	}
	if p.VendorID != nil {
		add("vendor_id", e.VendorID, *p.VendorID)
	}
	if p.PaymentMethodID != nil {
		add("payment_method_id", e.PaymentMethodID, *p.PaymentMethodID)
	}
	if p.TransactionDate != nil {
		add("transaction_date", e.TransactionDate, *p.TransactionDate)
	}

	return changes
}

// Apply writes the patch's non-status fields onto the expense
func (e *Expense) Apply(p Patch) {
	if p.AccountID != nil {
		e.AccountID = *p.AccountID
	}
	if p.Amount != nil {
		e.Amount = *p.Amount
	}
	if p.LineDescription != nil {
		e.LineDescription = *p.LineDescription
	}
	if p.TransactionDate != nil {
		e.TransactionDate = *p.TransactionDate
	}
	if p.TransactionType != nil {
		e.TransactionType = *p.TransactionType
	}
	if p.VendorID != nil {
		e.VendorID = *p.VendorID
	}
	if p.PaymentMethodID != nil {
		e.PaymentMethodID = *p.PaymentMethodID
	}
	if p.BillReference != nil {
		e.BillReference = *p.BillReference
	}
	if p.ReceiptURL != nil {
		e.ReceiptURL = *p.ReceiptURL
	}
}

// TrackedFields returns the audit-tracked field names
func TrackedFields() []string {
	out := make([]string, len(trackedFields))
	copy(out, trackedFields)
	return out
}
