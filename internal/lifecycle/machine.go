package lifecycle

import (
	"context"
	"fmt"

	"github.com/ngmgroup/ngm-hub-core/internal/domain/expense"
)

// RoleLookup resolves a user's role name for transition guards
type RoleLookup interface {
	GetRole(ctx context.Context, userID string) (string, error)
}

// GuardFunc evaluates whether an actor may take a configured transition.
// A nil return allows the transition.
type GuardFunc func(ctx context.Context, actor string) error

// Rules is the transition table for the expense status lifecycle. The graph is
// cyclic: pending, auth and review are all mutually reachable. Guards attach
// per target state; the review transition is role-gated.
type Rules struct {
	transitions map[expense.Status]map[expense.Status]GuardFunc
}

// StateConfig configures outgoing transitions for one state
type StateConfig struct {
	rules *Rules
	from  expense.Status
}

// NewRules creates an empty transition table
func NewRules() *Rules {
	return &Rules{
		transitions: make(map[expense.Status]map[expense.Status]GuardFunc),
	}
}

// Configure returns the configuration handle for a state
func (r *Rules) Configure(from expense.Status) *StateConfig {
	if !from.IsValid() {
		panic(fmt.Sprintf("invalid state: %s", from))
	}
	if _, ok := r.transitions[from]; !ok {
		r.transitions[from] = make(map[expense.Status]GuardFunc)
	}
	return &StateConfig{rules: r, from: from}
}

// Permit allows a transition to the target state unconditionally
func (c *StateConfig) Permit(to expense.Status) *StateConfig {
	return c.PermitIf(to, nil)
}

// PermitIf allows a transition to the target state when the guard passes
func (c *StateConfig) PermitIf(to expense.Status, guard GuardFunc) *StateConfig {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target state: %s", to))
	}
	c.rules.transitions[c.from][to] = guard
	return c
}

// CanTransition reports whether the pair is configured, ignoring guards
func (r *Rules) CanTransition(from, to expense.Status) bool {
	targets, ok := r.transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Check validates a transition and evaluates its guard. The same-status no-op
// is the caller's concern; Check only judges real moves.
func (r *Rules) Check(ctx context.Context, from, to expense.Status, actor string) error {
	if !to.IsValid() {
		return fmt.Errorf("%w: unknown status %q", expense.ErrValidation, to)
	}
	targets, ok := r.transitions[from]
	if !ok {
		return fmt.Errorf("%w: no transitions from %s", expense.ErrValidation, from)
	}
	guard, ok := targets[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s is not permitted", expense.ErrValidation, from, to)
	}
	if guard != nil {
		if err := guard(ctx, actor); err != nil {
			return err
		}
	}
	return nil
}

// PrivilegedRoleGuard builds a guard that admits only actors whose role is in
// the privileged set. Lookup failures deny the transition.
func PrivilegedRoleGuard(roles RoleLookup, privileged []string) GuardFunc {
	set := make(map[string]bool, len(privileged))
	for _, role := range privileged {
		set[role] = true
	}
	return func(ctx context.Context, actor string) error {
		role, err := roles.GetRole(ctx, actor)
		if err != nil {
			return fmt.Errorf("%w: could not resolve role for %q: %v", expense.ErrPermissionDenied, actor, err)
		}
		if !set[role] {
			return fmt.Errorf("%w: role %q may not flag expenses for review", expense.ErrPermissionDenied, role)
		}
		return nil
	}
}

// Default builds the standard lifecycle: every pair of live statuses is
// reachable, and only privileged roles may move an expense into review.
func Default(roles RoleLookup, privileged []string) *Rules {
	reviewGuard := PrivilegedRoleGuard(roles, privileged)

	r := NewRules()
	r.Configure(expense.StatusPending).
		Permit(expense.StatusAuth).
		PermitIf(expense.StatusReview, reviewGuard)
	r.Configure(expense.StatusAuth).
		Permit(expense.StatusPending).
		PermitIf(expense.StatusReview, reviewGuard)
	r.Configure(expense.StatusReview).
		Permit(expense.StatusPending).
		Permit(expense.StatusAuth)
	return r
}
