package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// ExpenseRepository handles expense row persistence
type ExpenseRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseRepository creates a new expense repository
func NewExpenseRepository(db *sql.DB, logger *zap.Logger) *ExpenseRepository {
	return &ExpenseRepository{
		db:     db,
		logger: logger,
	}
}

const expenseColumns = `expense_id, project_id, vendor_id, account_id, amount,
	line_description, transaction_date, transaction_type, payment_method_id,
	bill_reference, receipt_url, status, auth_status, authorized_by, created_at, updated_at`

// Insert stores a new expense. A missing ID is generated; timestamps are set here.
func (r *ExpenseRepository) Insert(ctx context.Context, tx *sql.Tx, e *expense.Expense) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	e.UpdatedAt = now

	query := `
		INSERT INTO expenses (` + expenseColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		e.ID, e.ProjectID, e.VendorID, e.AccountID, e.Amount.String(),
		e.LineDescription, e.TransactionDate, e.TransactionType, e.PaymentMethodID,
		e.BillReference, e.ReceiptURL, string(e.Status), e.AuthStatus, e.AuthorizedBy,
		e.CreatedAt, e.UpdatedAt,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to insert expense", zap.String("expense_id", e.ID), zap.Error(err))
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// GetByID loads one expense row
func (r *ExpenseRepository) GetByID(ctx context.Context, id string) (*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE expense_id = ?`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDTx loads one expense row inside a transaction
func (r *ExpenseRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE expense_id = ?`
	return r.scanOne(tx.QueryRowContext(ctx, query, id))
}

// ListByProject returns all expenses for a project, newest first
func (r *ExpenseRepository) ListByProject(ctx context.Context, projectID string) ([]*expense.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE project_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var out []*expense.Expense
	for rows.Next() {
		e, err := r.scanRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateFields writes the mutable non-status columns of an expense
func (r *ExpenseRepository) UpdateFields(ctx context.Context, tx *sql.Tx, e *expense.Expense) error {
	e.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE expenses SET
			vendor_id = ?, account_id = ?, amount = ?, line_description = ?,
			transaction_date = ?, transaction_type = ?, payment_method_id = ?,
			bill_reference = ?, receipt_url = ?, updated_at = ?
		WHERE expense_id = ?
	`
	args := []any{
		e.VendorID, e.AccountID, e.Amount.String(), e.LineDescription,
		e.TransactionDate, e.TransactionType, e.PaymentMethodID,
		e.BillReference, e.ReceiptURL, e.UpdatedAt, e.ID,
	}

	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, args...)
	} else {
		res, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		return fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return expense.ErrNotFound
	}
	return nil
}

// UpdateStatusCAS flips the status column with a compare-and-swap on the prior
// status. Returns ErrStatusConflict when the row exists but its status moved
// under us, ErrNotFound when the row is gone.
func (r *ExpenseRepository) UpdateStatusCAS(ctx context.Context, tx *sql.Tx, id string, from, to expense.Status, authorizedBy string) error {
	authStatus := to == expense.StatusAuth
	query := `
		UPDATE expenses SET status = ?, auth_status = ?, authorized_by = ?, updated_at = ?
		WHERE expense_id = ? AND status = ?
	`
	res, err := tx.ExecContext(ctx, query,
		string(to), authStatus, authorizedBy, time.Now().UTC(), id, string(from))
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		if _, getErr := r.GetByIDTx(ctx, tx, id); getErr != nil {
			return getErr
		}
		return expense.ErrStatusConflict
	}
	return nil
}

// Delete removes an expense row
func (r *ExpenseRepository) Delete(ctx context.Context, tx *sql.Tx, id string) error {
	var res sql.Result
	var err error
	if tx != nil {
		res, err = tx.ExecContext(ctx, "DELETE FROM expenses WHERE expense_id = ?", id)
	} else {
		res, err = r.db.ExecContext(ctx, "DELETE FROM expenses WHERE expense_id = ?", id)
	}
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return expense.ErrNotFound
	}
	return nil
}

func (r *ExpenseRepository) scanOne(row *sql.Row) (*expense.Expense, error) {
	e, err := scanExpense(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, expense.ErrNotFound
	}
	return e, err
}

func (r *ExpenseRepository) scanRow(rows *sql.Rows) (*expense.Expense, error) {
	return scanExpense(rows.Scan)
}

func scanExpense(scan func(dest ...any) error) (*expense.Expense, error) {
	var e expense.Expense
	var amount, status string
	err := scan(
		&e.ID, &e.ProjectID, &e.VendorID, &e.AccountID, &amount,
		&e.LineDescription, &e.TransactionDate, &e.TransactionType, &e.PaymentMethodID,
		&e.BillReference, &e.ReceiptURL, &status, &e.AuthStatus, &e.AuthorizedBy,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan expense: %w", err)
	}

	e.Status = expense.Status(status)
	e.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("corrupt amount %q for expense %s: %w", amount, e.ID, err)
	}
	return &e, nil
}
