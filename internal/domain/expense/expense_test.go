package expense

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	amount := decimal.NewFromFloat(100)

	_, err := New("", "v1", "a1", "desc", "2026-08-20", amount)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = New("p1", "v1", "a1", "  ", "2026-08-20", amount)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = New("p1", "v1", "a1", "desc", "20-08-2026", amount)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = New("p1", "v1", "a1", "desc", "2026-08-20", decimal.NewFromFloat(-1))
	assert.ErrorIs(t, err, ErrValidation)

	e, err := New("p1", "v1", "a1", "desc", "", amount)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, e.Status)
	assert.False(t, e.AuthStatus)
	assert.Empty(t, e.AuthorizedBy)
}

func TestApplyStatusKeepsLegacyFieldsInSync(t *testing.T) {
	e, err := New("p1", "v1", "a1", "desc", "", decimal.NewFromFloat(50))
	require.NoError(t, err)

	e.ApplyStatus(StatusAuth, "boss")
	assert.True(t, e.AuthStatus)
	assert.Equal(t, "boss", e.AuthorizedBy)

	e.ApplyStatus(StatusReview, "boss")
	assert.False(t, e.AuthStatus)
	assert.Empty(t, e.AuthorizedBy)

	e.ApplyStatus(StatusAuth, "accountant")
	e.ApplyStatus(StatusPending, "accountant")
	assert.False(t, e.AuthStatus)
	assert.Empty(t, e.AuthorizedBy)
}

func TestDiffTracksOnlyRealChanges(t *testing.T) {
	e, err := New("p1", "v1", "acct-1", "original", "2026-08-20", decimal.NewFromFloat(100))
	require.NoError(t, err)

	newAmount := decimal.NewFromFloat(150)
	sameAccount := "acct-1"
	newDesc := "revised"
	changes := e.Diff(Patch{
		Amount:          &newAmount,
		AccountID:       &sameAccount, // unchanged, must not appear
		LineDescription: &newDesc,
	})

	require.Len(t, changes, 2)
	fields := map[string]FieldChange{}
	for _, c := range changes {
		fields[c.Field] = c
	}
	assert.Equal(t, "100", fields["amount"].OldValue)
	assert.Equal(t, "150", fields["amount"].NewValue)
	assert.Equal(t, "original", fields["line_description"].OldValue)
}

func TestDiffIgnoresUntrackedFields(t *testing.T) {
	e, err := New("p1", "v1", "a1", "desc", "", decimal.NewFromFloat(10))
	require.NoError(t, err)

	ref := "INV-42"
	url := "receipts/x.pdf"
	status := StatusAuth
	changes := e.Diff(Patch{BillReference: &ref, ReceiptURL: &url, Status: &status})
	assert.Empty(t, changes)
}

func TestApplyWritesPatchedFields(t *testing.T) {
	e, err := New("p1", "v1", "a1", "desc", "", decimal.NewFromFloat(10))
	require.NoError(t, err)

	vendor := "v2"
	ref := "INV-7"
	e.Apply(Patch{VendorID: &vendor, BillReference: &ref})
	assert.Equal(t, "v2", e.VendorID)
	assert.Equal(t, "INV-7", e.BillReference)
	assert.Equal(t, "desc", e.LineDescription)
}

func TestStatusIsValid(t *testing.T) {
	assert.True(t, StatusPending.IsValid())
	assert.True(t, StatusAuth.IsValid())
	assert.True(t, StatusReview.IsValid())
	// Deleted exists only in the log, never on a row
	assert.False(t, StatusDeleted.IsValid())
	assert.False(t, Status("archived").IsValid())
}
