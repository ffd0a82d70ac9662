package txn

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Action represents a staged write operation.
type Action interface {
	// Execute performs the action.
	Execute(ctx context.Context) error

	// Rollback undoes the action if possible.
	Rollback(ctx context.Context) error

	// Description returns a human-readable description for logging.
	Description() string
}

type funcAction struct {
	desc string
	do   func(context.Context) error
	undo func(context.Context) error
}

// Func adapts a pair of functions to an Action. A nil undo makes Rollback a no-op.
func Func(description string, do, undo func(context.Context) error) Action {
	return &funcAction{desc: description, do: do, undo: undo}
}

func (a *funcAction) Execute(ctx context.Context) error { return a.do(ctx) }

func (a *funcAction) Rollback(ctx context.Context) error {
	if a.undo == nil {
		return nil
	}

	return a.undo(ctx)
}

func (a *funcAction) Description() string { return a.desc }

type staged struct {
	action     Action
	bestEffort bool
}

// Failure records a best-effort action that did not complete.
type Failure struct {
	Description string
	Err         error
}

// Result describes a committed transaction.
type Result struct {
	// Executed lists the descriptions of actions that succeeded, in order.
	Executed []string

	// Failures lists best-effort actions that failed.
	Failures []Failure

	// RollbackErrors lists compensations that themselves failed after a
	// required action aborted the transaction.
	RollbackErrors []error
}

// Partial reports whether any best-effort action failed.
func (r *Result) Partial() bool {
	return len(r.Failures) > 0
}

// Transaction collects actions and commits them once.
type Transaction struct {
	name      string
	mu        sync.Mutex
	actions   []staged
	committed bool
}

// New creates an empty transaction. The name is used in error messages.
func New(name string) *Transaction {
	return &Transaction{name: name}
}

// Add stages a required action.
func (t *Transaction) Add(action Action) error {
	return t.stage(action, false)
}

// AddBestEffort stages an action whose failure is recorded but tolerated.
func (t *Transaction) AddBestEffort(action Action) error {
	return t.stage(action, true)
}

func (t *Transaction) stage(action Action, bestEffort bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.committed {
		return ErrAlreadyCommitted
	}

	t.actions = append(t.actions, staged{action: action, bestEffort: bestEffort})

	return nil
}

// Commit executes all staged actions in order. When a required action
// fails, required actions already executed are rolled back in reverse order
// and the failure is returned. The Result is never nil.
func (t *Transaction) Commit(ctx context.Context) (*Result, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	res := &Result{}

	if t.committed {
		return res, ErrAlreadyCommitted
	}

	t.committed = true

	var executed []Action

	for _, s := range t.actions {
		err := s.action.Execute(ctx)
		if err == nil {
			res.Executed = append(res.Executed, s.action.Description())
			if !s.bestEffort {
				executed = append(executed, s.action)
			}

			continue
		}

		if s.bestEffort {
			res.Failures = append(res.Failures, Failure{Description: s.action.Description(), Err: err})
			continue
		}

		for i := len(executed) - 1; i >= 0; i-- {
			if rbErr := executed[i].Rollback(ctx); rbErr != nil {
				res.RollbackErrors = append(res.RollbackErrors,
					fmt.Errorf("rolling back %q: %w", executed[i].Description(), rbErr))
			}
		}

		return res, fmt.Errorf("%s: action %q failed: %w", t.name, s.action.Description(), err)
	}

	return res, nil
}

// Actions returns the descriptions of staged actions.
func (t *Transaction) Actions() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]string, len(t.actions))
	for i, s := range t.actions {
		out[i] = s.action.Description()
	}

	return out
}

// FailureError joins the errors of best-effort failures, nil when there are none.
func (r *Result) FailureError() error {
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, fmt.Errorf("%s: %w", f.Description, f.Err))
	}

	return errors.Join(errs...)
}
