package solver

import "context"

// Strategy resolves tasks of a single kind.
type Strategy interface {
	// Name identifies the strategy in logs and events. It plays no part in
	// dispatch or ordering.
	Name() string

	// TaskType is the kind of task this strategy handles.
	TaskType() Kind

	// Heuristic estimates the cost of resolving task. A nil result means the
	// strategy cannot handle this particular task.
	Heuristic(task Task) *Heuristic

	// Execute resolves task. A nil error is success; any error makes the
	// solver move on to the next candidate. The solver is passed so that
	// child tasks can be resolved recursively.
	Execute(ctx context.Context, task Task, s *Solver) error
}

// Candidate is an eligible strategy with its estimated total cost.
type Candidate struct {
	Strategy Strategy
	Cost     float64
}
