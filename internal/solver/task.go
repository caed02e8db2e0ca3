// Package solver selects and runs strategies for tasks.
//
// A Solver holds a registry of strategies. For every task it estimates the
// total cost of each eligible strategy by looking a bounded number of levels
// into the child tasks the strategy predicts it will spawn, then executes the
// candidates cheapest first until one succeeds.
package solver

import "fmt"

// Kind identifies the class of work a task represents. Strategies declare the
// kind they handle and are only considered for tasks of that kind.
type Kind string

// Task is a unit of work. The solver only ever inspects Kind; everything else
// belongs to the strategies.
//
// A nil interface is rejected with ErrNilTask. A typed nil pointer is not
// detected, so its Kind method must be safe to call on a nil receiver.
type Task interface {
	Kind() Kind
}

// Heuristic is a strategy's estimate for resolving one task.
type Heuristic struct {
	// Cost of resolving the task with this strategy alone. Must be >= 0.
	Cost float64

	// ChildTasks are the tasks the strategy expects to create while
	// executing. They inform estimation only and are never scheduled.
	ChildTasks []Task
}

// Record is a general purpose Task: a kind plus free-form fields.
type Record struct {
	Name   Kind
	Fields map[string]any
}

// NewRecord creates a record task. A nil fields map is replaced by an empty one.
func NewRecord(name Kind, fields map[string]any) Record {
	if fields == nil {
		fields = make(map[string]any)
	}
	return Record{Name: name, Fields: fields}
}

// Kind implements Task.
func (r Record) Kind() Kind {
	return r.Name
}

// Field returns the raw value stored under key.
func (r Record) Field(key string) (any, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Text returns the value stored under key formatted as a string, or "" when
// the field is absent.
func (r Record) Text(key string) string {
	v, ok := r.Fields[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
