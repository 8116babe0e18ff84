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

// StatusLogRepository handles the append-only expense_status_log table.
// Rows are only ever inserted; there is no update or delete path.
type StatusLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewStatusLogRepository creates a new status log repository
func NewStatusLogRepository(db *sql.DB, logger *zap.Logger) *StatusLogRepository {
	return &StatusLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends one transition record
func (r *StatusLogRepository) Create(ctx context.Context, tx *sql.Tx, entry *expense.StatusLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO expense_status_log (
			id, expense_id, old_status, new_status, changed_by, changed_at, reason, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	args := []any{
		entry.ID, entry.ExpenseID, string(entry.OldStatus), string(entry.NewStatus),
		entry.ChangedBy, entry.ChangedAt, entry.Reason, entry.MetadataJSON(),
	}

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		r.logger.Error("Failed to append status log entry",
			zap.String("expense_id", entry.ExpenseID),
			zap.Error(err))
		return fmt.Errorf("failed to append status log: %w", err)
	}
	return nil
}

// ListByExpense returns the transition trail for one expense in change order
func (r *StatusLogRepository) ListByExpense(ctx context.Context, expenseID string) ([]*expense.StatusLogEntry, error) {
	query := `
		SELECT id, expense_id, old_status, new_status, changed_by, changed_at, reason, metadata
		FROM expense_status_log
		WHERE expense_id = ?
		ORDER BY changed_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, expenseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list status log: %w", err)
	}
	defer rows.Close()

	var entries []*expense.StatusLogEntry
	for rows.Next() {
		var entry expense.StatusLogEntry
		var oldStatus, newStatus, metadata string
		err := rows.Scan(
			&entry.ID, &entry.ExpenseID, &oldStatus, &newStatus,
			&entry.ChangedBy, &entry.ChangedAt, &entry.Reason, &metadata,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status log entry: %w", err)
		}
		entry.OldStatus = expense.Status(oldStatus)
		entry.NewStatus = expense.Status(newStatus)
		entry.ParseMetadata(metadata)
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

// CountByExpense returns how many transition records exist for an expense
func (r *StatusLogRepository) CountByExpense(ctx context.Context, expenseID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM expense_status_log WHERE expense_id = ?", expenseID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count status log: %w", err)
	}
	return n, nil
}
