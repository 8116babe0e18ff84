package autoauth

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/dispatcher"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/event"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// SystemActor is recorded as changed_by on engine-made transitions, so
// automatic authorizations are distinguishable from human ones in the trail.
const SystemActor = "system:auto-auth"

// ExpenseLoader loads one expense row
type ExpenseLoader interface {
	GetByID(ctx context.Context, id string) (*expense.Expense, error)
}

// BillLister lists a project's bill documents
type BillLister interface {
	ListByProject(ctx context.Context, projectID string) ([]*expense.Bill, error)
}

// Transitioner flips expense status through the guarded lifecycle path
type Transitioner interface {
	Transition(ctx context.Context, expenseID string, newStatus expense.Status, actor, reason string, metadata map[string]any) (*expense.Expense, error)
}

// Engine authorizes pending expenses automatically when a bill backs them.
// It runs as a background handler on the dispatcher's async path: the engine
// never blocks an expense write, and an engine failure never fails one.
type Engine struct {
	expenses ExpenseLoader
	bills    BillLister
	status   Transitioner
	policy   MatchPolicy
	logger   *zap.Logger
}

// NewEngine creates an auto-authorization engine
func NewEngine(expenses ExpenseLoader, bills BillLister, status Transitioner, policy MatchPolicy, logger *zap.Logger) *Engine {
	return &Engine{
		expenses: expenses,
		bills:    bills,
		status:   status,
		policy:   policy,
		logger:   logger,
	}
}

// Register subscribes the engine to the events that can make an expense
// eligible: creation, and updates that relink a bill or receipt
func (e *Engine) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeExpenseCreated, "auto-auth", e.Handle)
	d.SubscribeNamed(event.TypeExpenseUpdated, "auto-auth", e.Handle)
}

// Handle evaluates one expense event. Non-pending expenses are skipped; a
// concurrent human decision between load and commit loses nothing, the CAS
// inside the transition surfaces it and the engine stands down.
func (e *Engine) Handle(ctx context.Context, evt *event.Event) error {
	if evt.ExpenseID == "" {
		return nil
	}
	// Updates only matter when they relinked a bill or receipt; plain field
	// edits cannot change the match outcome
	if evt.Type == event.TypeExpenseUpdated && !evt.GetPayloadBool("link_changed") {
		return nil
	}

	exp, err := e.expenses.GetByID(ctx, evt.ExpenseID)
	if err != nil {
		return fmt.Errorf("failed to load expense %s: %w", evt.ExpenseID, err)
	}
	if exp.Status != expense.StatusPending {
		return nil
	}

	bills, err := e.bills.ListByProject(ctx, exp.ProjectID)
	if err != nil {
		return fmt.Errorf("failed to load bills for project %s: %w", exp.ProjectID, err)
	}
	if len(bills) == 0 {
		return nil
	}

	decision := e.policy.Evaluate(exp, bills)
	if !decision.Match {
		return nil
	}

	_, err = e.status.Transition(ctx, exp.ID, expense.StatusAuth, SystemActor, "matched vendor bill",
		map[string]any{
			"bill_id":     decision.Bill.ID,
			"match_basis": decision.Basis,
			"match_score": decision.Score,
		})
	if err != nil {
		// A human got there first, or the row is gone; both are fine
		return fmt.Errorf("auto-authorization of %s did not apply: %w", exp.ID, err)
	}

	e.logger.Info("Expense auto-authorized",
		zap.String("expense_id", exp.ID),
		zap.String("bill_id", decision.Bill.ID),
		zap.Float64("score", decision.Score),
		zap.Strings("basis", decision.Basis))
	return nil
}
