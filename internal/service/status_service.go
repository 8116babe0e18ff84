package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/dispatcher"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/event"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
	"github.com/ngmgroup/ngm-hub-core/internal/lifecycle"
	"github.com/ngmgroup/ngm-hub-core/internal/repository"
	"github.com/ngmgroup/ngm-hub-core/pkg/database"
)

// SoftDeleteReason is the fixed reason recorded when a non-privileged actor
// requests deletion of a non-pending expense.
const SoftDeleteReason = "deletion requested"

// StatusService is the single entry point for expense status transitions.
// Every caller, including the patch path and the auto-authorization engine,
// goes through Transition so the review-role guard cannot be bypassed.
type StatusService struct {
	db        *database.DB
	expenses  *repository.ExpenseRepository
	statusLog *repository.StatusLogRepository
	rules     *lifecycle.Rules
	events    dispatcher.Dispatcher
	logger    *zap.Logger
}

// NewStatusService creates a status service
func NewStatusService(
	db *database.DB,
	expenses *repository.ExpenseRepository,
	statusLog *repository.StatusLogRepository,
	rules *lifecycle.Rules,
	events dispatcher.Dispatcher,
	logger *zap.Logger,
) *StatusService {
	return &StatusService{
		db:        db,
		expenses:  expenses,
		statusLog: statusLog,
		rules:     rules,
		events:    events,
		logger:    logger,
	}
}

// Transition moves an expense to a new status.
//
// The no-op transition (new status equals current) succeeds without writing a
// log entry. Every accepted real transition writes exactly one StatusLogEntry
// in the same transaction as the row update, with a compare-and-swap on the
// prior status so a concurrent transition surfaces as ErrStatusConflict
// instead of silently diverging from the audit trail.
func (s *StatusService) Transition(ctx context.Context, expenseID string, newStatus expense.Status, actor, reason string, metadata map[string]any) (*expense.Expense, error) {
	if !newStatus.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", expense.ErrValidation, newStatus)
	}
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", expense.ErrValidation)
	}

	current, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	if current.Status == newStatus {
		return current, nil
	}

	if err := s.rules.Check(ctx, current.Status, newStatus, actor); err != nil {
		return nil, err
	}

	return s.commit(ctx, current, newStatus, actor, reason, metadata)
}

// Authorize judges a prospective transition without committing anything. The
// patch path uses it so field changes are not persisted ahead of a status
// flip that would be rejected; Transition remains the authoritative check.
func (s *StatusService) Authorize(ctx context.Context, from, to expense.Status, actor string) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", expense.ErrValidation, to)
	}
	if strings.TrimSpace(actor) == "" {
		return fmt.Errorf("%w: actor is required", expense.ErrValidation)
	}
	if from == to {
		return nil
	}
	return s.rules.Check(ctx, from, to, actor)
}

// RequestDeletion is the soft-delete path: a non-privileged actor flags a
// non-pending expense for review with a fixed reason, deferring the real
// deletion decision to a privileged reviewer. The role guard is bypassed by
// design; the restricted reason and metadata make the intent auditable.
// Already-review expenses are a no-op.
func (s *StatusService) RequestDeletion(ctx context.Context, expenseID, actor string) (*expense.Expense, error) {
	if strings.TrimSpace(actor) == "" {
		return nil, fmt.Errorf("%w: actor is required", expense.ErrValidation)
	}

	current, err := s.expenses.GetByID(ctx, expenseID)
	if err != nil {
		return nil, err
	}

	if current.Status == expense.StatusReview {
		return current, nil
	}
	if current.Status == expense.StatusPending {
		return nil, fmt.Errorf("%w: pending expenses can be deleted directly", expense.ErrValidation)
	}

	return s.commit(ctx, current, expense.StatusReview, actor, SoftDeleteReason,
		map[string]any{"soft_delete": true})
}

// commit writes the audit entry and the status flip atomically, then emits
// the status-changed event on the async path.
func (s *StatusService) commit(ctx context.Context, current *expense.Expense, newStatus expense.Status, actor, reason string, metadata map[string]any) (*expense.Expense, error) {
	entry := &expense.StatusLogEntry{
		ExpenseID: current.ID,
		OldStatus: current.Status,
		NewStatus: newStatus,
		ChangedBy: actor,
		ChangedAt: time.Now().UTC(),
		Reason:    reason,
		Metadata:  metadata,
	}

	err := s.db.WithTransaction(func(tx *sql.Tx) error {
		// Audit row first: a crash after this point rolls both back together
		if err := s.statusLog.Create(ctx, tx, entry); err != nil {
			return err
		}
		authorizedBy := ""
		if newStatus == expense.StatusAuth {
			authorizedBy = actor
		}
		return s.expenses.UpdateStatusCAS(ctx, tx, current.ID, current.Status, newStatus, authorizedBy)
	})
	if err != nil {
		return nil, err
	}

	updated := *current
	updated.ApplyStatus(newStatus, actor)
	updated.UpdatedAt = entry.ChangedAt

	s.logger.Info("Expense status changed",
		zap.String("expense_id", current.ID),
		zap.String("old_status", current.Status.String()),
		zap.String("new_status", newStatus.String()),
		zap.String("actor", actor))

	if s.events != nil {
		evt := event.NewEvent(event.TypeStatusChanged, current.ID, current.ProjectID,
			map[string]any{
				"old_status": current.Status.String(),
				"new_status": newStatus.String(),
				"actor":      actor,
			})
		if reason != "" {
			evt = evt.WithPayload("reason", reason)
		}
		s.events.DispatchAsync(ctx, evt)
	}

	return &updated, nil
}
