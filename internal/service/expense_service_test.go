package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
	"github.com/ngmgroup/ngm-hub-core/internal/scan"
)

func strPtr(s string) *string { return &s }

func TestCreateStartsPending(t *testing.T) {
	f := newFixture(t)

	e, err := f.expense.Create(context.Background(), CreateInput{
		ProjectID:       "proj-1",
		VendorID:        "vendor-1",
		AccountID:       "acct-500",
		Amount:          "1250.00",
		LineDescription: "Concrete pour",
		TransactionDate: "2026-08-22",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, expense.StatusPending, e.Status)
	assert.False(t, e.AuthStatus)
	assert.Empty(t, e.AuthorizedBy)
	assert.Equal(t, "1250", e.Amount.String())

	// Creation is not a status change and writes no status log
	count, err := f.statusLog.CountByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing project", CreateInput{Amount: "10", LineDescription: "x"}},
		{"missing description", CreateInput{ProjectID: "p", Amount: "10"}},
		{"bad amount", CreateInput{ProjectID: "p", LineDescription: "x", Amount: "ten"}},
		{"negative amount", CreateInput{ProjectID: "p", LineDescription: "x", Amount: "-5"}},
		{"bad date", CreateInput{ProjectID: "p", LineDescription: "x", Amount: "10", TransactionDate: "22/08/2026"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.expense.Create(context.Background(), tc.in)
			assert.ErrorIs(t, err, expense.ErrValidation)
		})
	}
}

func TestUpdateWhilePendingIsUnlogged(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusPending)

	amount := decimal.NewFromFloat(999.99)
	updated, err := f.expense.Update(context.Background(), e.ID, expense.Patch{
		Amount:          &amount,
		LineDescription: strPtr("Lumber delivery, revised"),
	}, "clerk", "")
	require.NoError(t, err)
	assert.Equal(t, "999.99", updated.Amount.String())

	// Pending edits are drafting; nothing reaches the change log
	changes, err := f.changeLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestUpdateAfterAuthorizationIsLoggedPerField(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	amount := decimal.NewFromFloat(500)
	_, err := f.expense.Update(context.Background(), e.ID, expense.Patch{
		Amount:    &amount,
		AccountID: strPtr("acct-600"),
	}, "boss", "reclassified")
	require.NoError(t, err)

	changes, err := f.changeLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, changes, 2)

	byField := map[string]string{}
	for _, c := range changes {
		byField[c.FieldName] = c.NewValue
		assert.Equal(t, expense.StatusAuth, c.StatusAtTime)
		assert.Equal(t, "boss", c.ChangedBy)
		assert.Equal(t, "reclassified", c.Reason)
	}
	assert.Equal(t, "500", byField["amount"])
	assert.Equal(t, "acct-600", byField["account_id"])
}

func TestUpdateUnchangedFieldNotLogged(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	// Same value as seeded: a no-change patch writes nothing
	_, err := f.expense.Update(context.Background(), e.ID, expense.Patch{
		AccountID: strPtr("acct-500"),
	}, "boss", "")
	require.NoError(t, err)

	changes, err := f.changeLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestUpdateRejectsValuesCreateWouldReject(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	negative := decimal.NewFromInt(-50)
	_, err := f.expense.Update(context.Background(), e.ID, expense.Patch{
		Amount:          &negative,
		TransactionDate: strPtr("definitely-not-a-date"),
	}, "boss", "")
	require.ErrorIs(t, err, expense.ErrValidation)

	_, err = f.expense.Update(context.Background(), e.ID, expense.Patch{
		LineDescription: strPtr("   "),
	}, "boss", "")
	require.ErrorIs(t, err, expense.ErrValidation)

	// The stored row is untouched by the rejected patches
	stored, err := f.expenses.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "412.5", stored.Amount.String())
	assert.Equal(t, "Lumber delivery", stored.LineDescription)
	assert.Equal(t, "2026-08-20", stored.TransactionDate)

	changes, err := f.changeLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestUpdateRejectedStatusFlipLeavesFieldsUntouched(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	// The clerk may not move an expense into review, so the bundled amount
	// edit must not land either
	amount := decimal.NewFromFloat(999)
	status := expense.StatusReview
	_, err := f.expense.Update(context.Background(), e.ID, expense.Patch{
		Amount: &amount,
		Status: &status,
	}, "clerk", "")
	require.ErrorIs(t, err, expense.ErrPermissionDenied)

	stored, err := f.expenses.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, expense.StatusAuth, stored.Status)
	assert.Equal(t, "412.5", stored.Amount.String())

	changes, err := f.changeLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestUpdateStatusFlipGoesThroughLifecycle(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusPending)

	status := expense.StatusReview
	_, err := f.expense.Update(context.Background(), e.ID, expense.Patch{Status: &status}, "clerk", "")
	require.ErrorIs(t, err, expense.ErrPermissionDenied)

	status = expense.StatusAuth
	updated, err := f.expense.Update(context.Background(), e.ID, expense.Patch{Status: &status}, "boss", "")
	require.NoError(t, err)
	assert.Equal(t, expense.StatusAuth, updated.Status)
	assert.True(t, updated.AuthStatus)
	assert.Equal(t, "boss", updated.AuthorizedBy)

	entries, err := f.statusLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, true, entries[0].Metadata["via_patch"])
}

func TestDeletePendingIsDirectAndUnlogged(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusPending)

	require.NoError(t, f.expense.Delete(context.Background(), e.ID, "", ""))

	_, err := f.expenses.GetByID(context.Background(), e.ID)
	assert.ErrorIs(t, err, expense.ErrNotFound)

	count, err := f.statusLog.CountByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDeleteAuthorizedRequiresActorAndReason(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	assert.ErrorIs(t, f.expense.Delete(context.Background(), e.ID, "", ""), expense.ErrReasonRequired)
	assert.ErrorIs(t, f.expense.Delete(context.Background(), e.ID, "boss", " "), expense.ErrReasonRequired)

	// Still there after the rejected attempts
	_, err := f.expenses.GetByID(context.Background(), e.ID)
	require.NoError(t, err)
}

func TestDeleteAuthorizedWritesTerminalEntry(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	require.NoError(t, f.expense.Delete(context.Background(), e.ID, "boss", "duplicate entry"))

	_, err := f.expenses.GetByID(context.Background(), e.ID)
	assert.ErrorIs(t, err, expense.ErrNotFound)

	// The audit trail outlives the row
	entries, err := f.statusLog.ListByExpense(context.Background(), e.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	last := entries[len(entries)-1]
	assert.Equal(t, expense.StatusAuth, last.OldStatus)
	assert.Equal(t, expense.StatusDeleted, last.NewStatus)
	assert.Equal(t, "duplicate entry", last.Reason)
	assert.Equal(t, "412.5", last.Metadata["amount"])
	assert.Equal(t, "Lumber delivery", last.Metadata["line_description"])
	assert.Equal(t, "acct-500", last.Metadata["account_id"])
}

func TestCreateFromScan(t *testing.T) {
	f := newFixture(t)

	result := &scan.Result{
		Items: []scan.Item{
			{Description: "Rebar #4", Amount: decimal.NewFromFloat(80), Account: "acct-510"},
			{Description: "Tie wire", Amount: decimal.NewFromFloat(40), Account: "acct-510"},
		},
		ExtractionMethod: scan.MethodLocalOCR,
		ReceiptDate:      "2026-08-25",
	}

	created, err := f.expense.CreateFromScan(context.Background(), "proj-1", "receipts/r1.pdf", result)
	require.NoError(t, err)
	require.Len(t, created, 2)

	for _, e := range created {
		assert.Equal(t, expense.StatusPending, e.Status)
		assert.Equal(t, "receipts/r1.pdf", e.ReceiptURL)
		assert.Equal(t, "2026-08-25", e.TransactionDate)
	}

	listed, err := f.expense.ListByProject(context.Background(), "proj-1")
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestCreateFromScanEmptyResult(t *testing.T) {
	f := newFixture(t)

	_, err := f.expense.CreateFromScan(context.Background(), "proj-1", "", &scan.Result{})
	assert.ErrorIs(t, err, expense.ErrValidation)
}

func TestAuditTrailCombinesBothLogs(t *testing.T) {
	f := newFixture(t)
	e := f.seed(t, expense.StatusAuth)

	amount := decimal.NewFromFloat(450)
	_, err := f.expense.Update(context.Background(), e.ID, expense.Patch{Amount: &amount}, "boss", "adjusted")
	require.NoError(t, err)

	statusEntries, fieldEntries, err := f.expense.AuditTrail(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Len(t, statusEntries, 1)
	assert.Len(t, fieldEntries, 1)

	_, _, err = f.expense.AuditTrail(context.Background(), "missing")
	assert.ErrorIs(t, err, expense.ErrNotFound)
}
