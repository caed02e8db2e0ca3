package solver

import (
	"context"
	"time"
)

// EventType names a step in the life of a HandleTask call.
type EventType string

const (
	EventEstimate      EventType = "estimate"
	EventAttempt       EventType = "attempt"
	EventAttemptFailed EventType = "attempt_failed"
	EventResolved      EventType = "resolved"
	EventUnresolved    EventType = "unresolved"
)

// Event describes one step of task handling.
type Event struct {
	// RunID identifies the HandleTask call.
	RunID string `json:"run_id"`

	// ParentRunID is set when the call was made from inside a strategy.
	ParentRunID string `json:"parent_run_id,omitempty"`

	// Depth is the nesting level of the call (root = 0).
	Depth int `json:"depth"`

	Type EventType `json:"type"`
	Kind Kind      `json:"kind"`

	// Strategy and Cost describe the candidate for attempt events.
	Strategy string  `json:"strategy,omitempty"`
	Cost     float64 `json:"cost,omitempty"`

	// Attempt is the 1-based candidate position.
	Attempt int `json:"attempt,omitempty"`

	// Candidates is the number of eligible strategies.
	Candidates int `json:"candidates"`

	// Duration of the estimate or the attempt.
	Duration time.Duration `json:"duration,omitempty"`

	// Err is the strategy's error for attempt_failed, or the chain's cause
	// for unresolved.
	Err error `json:"-"`

	Time time.Time `json:"time"`
}

// Observer receives events from a Solver. Observe is called synchronously
// on the goroutine running HandleTask and must be safe for concurrent use
// when tasks are handled concurrently.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// Observe implements Observer.
func (f ObserverFunc) Observe(e Event) {
	f(e)
}

// Run identifies a HandleTask call and its place in a recursive chain.
type Run struct {
	ID     string
	Parent string
	Depth  int
}

type runKey struct{}

// RunFromContext returns the run a strategy is executing under.
func RunFromContext(ctx context.Context) (Run, bool) {
	run, ok := ctx.Value(runKey{}).(Run)
	return run, ok
}

func contextWithRun(ctx context.Context, run Run) context.Context {
	return context.WithValue(ctx, runKey{}, run)
}
