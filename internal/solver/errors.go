package solver

import (
	"errors"
	"fmt"
)

// Errors returned by the solver.
var (
	// ErrNoSolution is matched by every error returned when no candidate
	// strategy resolved a task.
	ErrNoSolution = errors.New("no solution found")

	// ErrNilTask is returned when HandleTask is given a nil task.
	ErrNilTask = errors.New("nil task")

	// ErrInvalidDepth is returned for search depths below 1.
	ErrInvalidDepth = errors.New("search depth must be at least 1")
)

// NoSolutionError reports that a task could not be resolved. Errors from the
// individual strategies are not retained.
type NoSolutionError struct {
	// Kind of the task that was not resolved.
	Kind Kind

	// Attempts is the number of strategies that were executed.
	Attempts int

	// Cause is set when the attempt chain was cut short, e.g. by a
	// cancelled context.
	Cause error
}

func (e *NoSolutionError) Error() string {
	msg := fmt.Sprintf("no solution found for %q", e.Kind)
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempt(s)", e.Attempts)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrNoSolution) hold.
func (e *NoSolutionError) Is(target error) bool {
	return target == ErrNoSolution
}

func (e *NoSolutionError) Unwrap() error {
	return e.Cause
}
