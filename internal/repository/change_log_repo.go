package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// ChangeLogRepository handles the append-only expense_change_log table
type ChangeLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChangeLogRepository creates a new change log repository
func NewChangeLogRepository(db *sql.DB, logger *zap.Logger) *ChangeLogRepository {
	return &ChangeLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one field-change record
func (r *ChangeLogRepository) Create(ctx context.Context, tx *sql.Tx, entry *expense.FieldChangeEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO expense_change_log (
			id, expense_id, field_name, old_value, new_value,
			changed_by, changed_at, expense_status_at_time, reason
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		entry.ID, entry.ExpenseID, entry.FieldName, entry.OldValue, entry.NewValue,
		entry.ChangedBy, entry.ChangedAt, string(entry.StatusAtTime), entry.Reason,
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to append field change entry",
			zap.String("expense_id", entry.ExpenseID),
			zap.String("field", entry.FieldName),
			zap.Error(err))
		return fmt.Errorf("failed to append change log: %w", err)
	}
	return nil
}

// ListByExpense returns the field-change trail for one expense in change order
func (r *ChangeLogRepository) ListByExpense(ctx context.Context, expenseID string) ([]*expense.FieldChangeEntry, error) {
	query := `
		SELECT id, expense_id, field_name, old_value, new_value,
			changed_by, changed_at, expense_status_at_time, reason
		FROM expense_change_log
		WHERE expense_id = ?
		ORDER BY changed_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list change log: %w", err)
	}
	defer rows.Close()

	var entries []*expense.FieldChangeEntry
	for rows.Next() {
		var entry expense.FieldChangeEntry
		var statusAtTime string
		err := rows.Scan(
			&entry.ID, &entry.ExpenseID, &entry.FieldName, &entry.OldValue, &entry.NewValue,
			&entry.ChangedBy, &entry.ChangedAt, &statusAtTime, &entry.Reason,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan change log entry: %w", err)
		}
		entry.StatusAtTime = expense.Status(statusAtTime)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}
