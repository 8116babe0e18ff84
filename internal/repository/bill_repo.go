package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// BillRepository handles vendor bill/receipt document rows
type BillRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewBillRepository creates a new bill repository
func NewBillRepository(db *sql.DB, logger *zap.Logger) *BillRepository {
	return &BillRepository{
		db:     db,
		logger: logger,
	}
}

// Insert stores a new bill
func (r *BillRepository) Insert(ctx context.Context, b *expense.Bill) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	b.CreatedAt = time.Now().UTC()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO bills (bill_id, project_id, vendor_id, reference, amount, bill_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, b.ID, b.ProjectID, b.VendorID, b.Reference, b.Amount.String(), b.BillDate, b.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to insert bill", zap.String("bill_id", b.ID), zap.Error(err))
		return fmt.Errorf("failed to insert bill: %w", err)
	}
	return nil
}

// ListByProject returns all bills linked to a project
func (r *BillRepository) ListByProject(ctx context.Context, projectID string) ([]*expense.Bill, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT bill_id, project_id, vendor_id, reference, amount, bill_date, created_at
		FROM bills WHERE project_id = ?
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var bills []*expense.Bill
	for rows.Next() {
		var b expense.Bill
		var amount string
		if err := rows.Scan(&b.ID, &b.ProjectID, &b.VendorID, &b.Reference, &amount, &b.BillDate, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan bill: %w", err)
		}
		b.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q for bill %s: %w", amount, b.ID, err)
		}
		bills = append(bills, &b)
	}
	return bills, rows.Err()
}
