package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/dispatcher"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/event"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
	"github.com/ngmgroup/ngm-hub-core/internal/repository"
	"github.com/ngmgroup/ngm-hub-core/internal/scan"
	"github.com/ngmgroup/ngm-hub-core/pkg/database"
)

// ExpenseService owns expense creation, field updates and deletion. Status
// flips, even those arriving inside a general patch, are delegated to the
// StatusService so the transition rules apply on every path.
type ExpenseService struct {
	db        *database.DB
	expenses  *repository.ExpenseRepository
	statusLog *repository.StatusLogRepository
	changeLog *repository.ChangeLogRepository
	status    *StatusService
	events    dispatcher.Dispatcher
	logger    *zap.Logger
}

// NewExpenseService creates an expense service
func NewExpenseService(
	db *database.DB,
	expenses *repository.ExpenseRepository,
	statusLog *repository.StatusLogRepository,
	changeLog *repository.ChangeLogRepository,
	status *StatusService,
	events dispatcher.Dispatcher,
	logger *zap.Logger,
) *ExpenseService {
	return &ExpenseService{
		db:        db,
		expenses:  expenses,
		statusLog: statusLog,
		changeLog: changeLog,
		status:    status,
		events:    events,
		logger:    logger,
	}
}

// CreateInput carries the fields of a manual expense entry
type CreateInput struct {
	ProjectID       string
	VendorID        string
	AccountID       string
	Amount          string
	LineDescription string
	TransactionDate string
	TransactionType string
	PaymentMethodID string
	BillReference   string
	ReceiptURL      string
}

// Create inserts a new expense. Every expense starts pending; the created
// event triggers auto-authorization in the background.
func (s *ExpenseService) Create(ctx context.Context, in CreateInput) (*expense.Expense, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return nil, err
	}

	e, err := expense.New(in.ProjectID, in.VendorID, in.AccountID, in.LineDescription, in.TransactionDate, amount)
	if err != nil {
		return nil, err
	}
	e.TransactionType = in.TransactionType
	e.PaymentMethodID = in.PaymentMethodID
	e.BillReference = in.BillReference
	e.ReceiptURL = in.ReceiptURL

	if err := s.expenses.Insert(ctx, nil, e); err != nil {
		return nil, err
	}

	s.logger.Info("Expense created",
		zap.String("expense_id", e.ID),
		zap.String("project_id", e.ProjectID),
		zap.String("amount", e.Amount.String()))

	s.dispatch(ctx, event.NewEvent(event.TypeExpenseCreated, e.ID, e.ProjectID, nil))
	return e, nil
}

// Get loads one expense
func (s *ExpenseService) Get(ctx context.Context, id string) (*expense.Expense, error) {
	return s.expenses.GetByID(ctx, id)
}

// ListByProject lists a project's expenses
func (s *ExpenseService) ListByProject(ctx context.Context, projectID string) ([]*expense.Expense, error) {
	return s.expenses.ListByProject(ctx, projectID)
}

// Update applies a partial update.
//
// Tracked-field changes on an expense that is currently in review or auth are
// each recorded as one FieldChangeEntry; edits while pending are drafting and
// go unlogged. A status flip bundled into the patch is routed through the
// StatusService with via_patch metadata, so the review guard applies here too.
func (s *ExpenseService) Update(ctx context.Context, id string, patch expense.Patch, actor, reason string) (*expense.Expense, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	current, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Judge a bundled status flip up front so a rejected flip does not leave
	// the field changes already committed
	if patch.Status != nil && *patch.Status != current.Status {
		if err := s.status.Authorize(ctx, current.Status, *patch.Status, actor); err != nil {
			return nil, err
		}
	}

	changes := current.Diff(patch)
	statusAtTime := current.Status
	auditWorthy := statusAtTime == expense.StatusAuth || statusAtTime == expense.StatusReview

	updated := *current
	updated.Apply(patch)

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if auditWorthy {
			now := time.Now().UTC()
			for _, change := range changes {
				entry := &expense.FieldChangeEntry{
					ExpenseID:    id,
					FieldName:    change.Field,
					OldValue:     change.OldValue,
					NewValue:     change.NewValue,
					ChangedBy:    actor,
					ChangedAt:    now,
					StatusAtTime: statusAtTime,
					Reason:       reason,
				}
				if err := s.changeLog.Create(ctx, tx, entry); err != nil {
					return err
				}
			}
		}
		return s.expenses.UpdateFields(ctx, tx, &updated)
	})
	if err != nil {
		return nil, err
	}

	// Status flip bundled into the patch goes through the single entry point
	if patch.Status != nil && *patch.Status != current.Status {
		transitioned, err := s.status.Transition(ctx, id, *patch.Status, actor, reason,
			map[string]any{"via_patch": true})
		if err != nil {
			return nil, err
		}
		updated.Status = transitioned.Status
		updated.AuthStatus = transitioned.AuthStatus
		updated.AuthorizedBy = transitioned.AuthorizedBy
	}

	// A new bill reference or receipt on a still-pending expense re-triggers
	// auto-authorization
	if updated.Status == expense.StatusPending && linkChanged(current, patch) {
		s.dispatch(ctx, event.NewEvent(event.TypeExpenseUpdated, id, current.ProjectID,
			map[string]any{"link_changed": true}))
	}

	return &updated, nil
}

// Delete removes an expense.
//
// A pending expense is deleted outright, no actor or reason required, and no
// audit entry written. Deleting an authorized or in-review expense requires
// both; a terminal StatusLogEntry capturing the row's last known amount,
// description and account is appended in the same transaction before the row
// goes away.
func (s *ExpenseService) Delete(ctx context.Context, id, actor, reason string) error {
	current, err := s.expenses.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if current.Status == expense.StatusPending {
		return s.expenses.Delete(ctx, nil, id)
	}

	if strings.TrimSpace(actor) == "" || strings.TrimSpace(reason) == "" {
		return fmt.Errorf("%w: deleting a %s expense", expense.ErrReasonRequired, current.Status)
	}

	entry := &expense.StatusLogEntry{
		ExpenseID: id,
		OldStatus: current.Status,
		NewStatus: expense.StatusDeleted,
		ChangedBy: actor,
		ChangedAt: time.Now().UTC(),
		Reason:    reason,
		Metadata: map[string]any{
			"amount":           current.Amount.String(),
			"line_description": current.LineDescription,
			"account_id":       current.AccountID,
		},
	}

	err = s.db.WithTransaction(func(tx *sql.Tx) error {
		if err := s.statusLog.Create(ctx, tx, entry); err != nil {
			return err
		}
		return s.expenses.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Expense deleted",
		zap.String("expense_id", id),
		zap.String("last_status", current.Status.String()),
		zap.String("actor", actor))
	return nil
}

// CreateFromScan inserts one pending expense per extracted line item and
// announces the processed receipt
func (s *ExpenseService) CreateFromScan(ctx context.Context, projectID, receiptURL string, result *scan.Result) ([]*expense.Expense, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, fmt.Errorf("%w: project_id is required", expense.ErrValidation)
	}
	if result == nil || len(result.Items) == 0 {
		return nil, fmt.Errorf("%w: scan produced no line items", expense.ErrValidation)
	}

	// One correlation chain per receipt: the summary event and every per-item
	// created event share the receipt event's correlation ID
	receiptEvt := event.NewEvent(event.TypeReceiptProcessed, "", projectID, map[string]any{
		"line_items":       len(result.Items),
		"method":           result.ExtractionMethod,
		"total_match_type": result.TotalMatchType,
	})

	created := make([]*expense.Expense, 0, len(result.Items))
	for _, item := range result.Items {
		e, err := expense.New(projectID, "", item.Account, item.Description, result.ReceiptDate, item.Amount)
		if err != nil {
			return nil, err
		}
		e.ReceiptURL = receiptURL

		if err := s.expenses.Insert(ctx, nil, e); err != nil {
			return nil, err
		}
		created = append(created, e)

		s.dispatch(ctx, event.NewEventWithCorrelation(event.TypeExpenseCreated, e.ID, projectID,
			map[string]any{"source": "scan", "extraction_method": result.ExtractionMethod},
			receiptEvt.CorrelationID))
	}

	s.dispatch(ctx, receiptEvt)

	return created, nil
}

// AuditTrail returns the combined, time-ordered status and field-change
// history of one expense
func (s *ExpenseService) AuditTrail(ctx context.Context, id string) ([]*expense.StatusLogEntry, []*expense.FieldChangeEntry, error) {
	if _, err := s.expenses.GetByID(ctx, id); err != nil {
		return nil, nil, err
	}
	statusEntries, err := s.statusLog.ListByExpense(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	fieldEntries, err := s.changeLog.ListByExpense(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return statusEntries, fieldEntries, nil
}

func (s *ExpenseService) dispatch(ctx context.Context, evt *event.Event) {
	if s.events != nil {
		s.events.DispatchAsync(ctx, evt)
	}
}

// parseAmount parses a decimal amount string, rounded to cents
func parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", expense.ErrValidation)
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: invalid amount %q", expense.ErrValidation, raw)
	}
	return amount.Round(2), nil
}

func linkChanged(current *expense.Expense, patch expense.Patch) bool {
	if patch.BillReference != nil && *patch.BillReference != current.BillReference {
		return true
	}
	if patch.ReceiptURL != nil && *patch.ReceiptURL != current.ReceiptURL {
		return true
	}
	return false
}
