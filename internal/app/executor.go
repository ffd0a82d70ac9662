package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Non-optimistic collection writes run through an Executor: validate,
// perform, verify, respond. A validation failure never reaches the store,
// and a row the store hands back is checked before the caller sees it.

// ExecutionStep names a step of an Operation.
type ExecutionStep string

const (
	StepValidate ExecutionStep = "validate"
	StepPerform  ExecutionStep = "perform"
	StepVerify   ExecutionStep = "verify"
	StepRespond  ExecutionStep = "respond"
)

// ExecutionError records the step an operation failed in. It unwraps to the
// cause, so domain checks such as domain.IsValidation still match.
type ExecutionError struct {
	Op    string
	Step  ExecutionStep
	Cause error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Step, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// StepOf reports the step err failed in, if it came from Execute.
func StepOf(err error) (ExecutionStep, bool) {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Step, true
	}

	return "", false
}

// Executor runs Operations and logs their outcome.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor returns an Executor that logs to logger, or slog.Default when
// nil. The request context is passed through to every log call.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{logger: logger}
}

// Operation is a store write split into steps. I is the input, P what
// Perform returns, V what Verify accepts and O what the caller gets. Nil
// steps are skipped.
type Operation[I, P, V, O any] struct {
	Name string

	Validate func(ctx context.Context, in I) error
	Perform  func(ctx context.Context, in I) (P, error)
	Verify   func(ctx context.Context, in I, performed P) (V, error)
	Respond  func(ctx context.Context, in I, verified V) (O, error)
}

// Execute runs op on input, stopping at the first failing step.
func Execute[I, P, V, O any](ctx context.Context, exec *Executor, op Operation[I, P, V, O], input I) (O, error) {
	var zero O

	logger := exec.logger.With(slog.String("operation", op.Name))
	start := time.Now()

	fail := func(step ExecutionStep, level slog.Level, err error) (O, error) {
		logger.Log(ctx, level, "operation failed", slog.String("step", string(step)), slog.Any("error", err))
		return zero, &ExecutionError{Op: op.Name, Step: step, Cause: err}
	}

	if op.Validate != nil {
		if err := op.Validate(ctx, input); err != nil {
			return fail(StepValidate, slog.LevelWarn, err)
		}
	}

	var performed P

	if op.Perform != nil {
		var err error
		if performed, err = op.Perform(ctx, input); err != nil {
			return fail(StepPerform, slog.LevelError, err)
		}
	}

	var verified V

	if op.Verify != nil {
		var err error
		if verified, err = op.Verify(ctx, input, performed); err != nil {
			return fail(StepVerify, slog.LevelError, err)
		}
	}

	result := zero

	if op.Respond != nil {
		var err error
		if result, err = op.Respond(ctx, input, verified); err != nil {
			return fail(StepRespond, slog.LevelWarn, err)
		}
	}

	logger.InfoContext(ctx, "operation completed", slog.Duration("duration", time.Since(start)))

	return result, nil
}
