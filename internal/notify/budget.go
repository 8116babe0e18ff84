package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/ngmgroup/ngm-hub-core/internal/dispatcher"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/event"
	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// BudgetChecker is the port to the project budget system. The core only
// signals that a project's spend changed; the budget math lives elsewhere.
type BudgetChecker interface {
	NotifyProjectBudgetCheck(ctx context.Context, projectID string) error
}

// LoggingBudgetChecker is the default BudgetChecker: it records the signal
// and does nothing else. Deployments with a budget service swap it out.
type LoggingBudgetChecker struct {
	logger *zap.Logger
}

// NewLoggingBudgetChecker creates the logging budget checker
func NewLoggingBudgetChecker(logger *zap.Logger) *LoggingBudgetChecker {
	return &LoggingBudgetChecker{logger: logger}
}

// NotifyProjectBudgetCheck logs the budget check request
func (c *LoggingBudgetChecker) NotifyProjectBudgetCheck(_ context.Context, projectID string) error {
	c.logger.Info("Project budget check requested", zap.String("project_id", projectID))
	return nil
}

// BudgetWatcher bridges status-change events to the budget checker. Only a
// move into auth changes committed spend, so only those trigger a check.
type BudgetWatcher struct {
	checker BudgetChecker
	logger  *zap.Logger
}

// NewBudgetWatcher creates a budget watcher
func NewBudgetWatcher(checker BudgetChecker, logger *zap.Logger) *BudgetWatcher {
	return &BudgetWatcher{checker: checker, logger: logger}
}

// Register subscribes the watcher to status changes
func (w *BudgetWatcher) Register(d dispatcher.Dispatcher) {
	d.SubscribeNamed(event.TypeStatusChanged, "budget-check", w.Handle)
}

// Handle forwards authorization events to the budget checker
func (w *BudgetWatcher) Handle(ctx context.Context, evt *event.Event) error {
	if expense.Status(evt.GetPayloadString("new_status")) != expense.StatusAuth {
		return nil
	}
	return w.checker.NotifyProjectBudgetCheck(ctx, evt.ProjectID)
}
