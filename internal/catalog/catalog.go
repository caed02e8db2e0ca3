// Package catalog declares strategies in YAML so the solver can be driven
// without writing Go: each entry names the task type it handles, a fixed
// cost, the child tasks it predicts, and one of a few built-in actions.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rand/goalsolver/internal/resilience"
	"github.com/rand/goalsolver/internal/solver"
	"gopkg.in/yaml.v3"
)

// Action is what a declared strategy does when executed.
type Action string

const (
	// ActionSet copies the task's value field into the state.
	ActionSet Action = "set"

	// ActionFail always fails, which exercises fallback.
	ActionFail Action = "fail"

	// ActionSpawn resolves each declared child task through the solver.
	ActionSpawn Action = "spawn"
)

// ValueField is the task field ActionSet reads.
const ValueField = "value"

// Catalog is a set of declared strategies.
type Catalog struct {
	Strategies []Spec `yaml:"strategies"`
}

// Spec declares one strategy.
type Spec struct {
	Name     string  `yaml:"name"`
	TaskType string  `yaml:"task_type"`
	Cost     float64 `yaml:"cost"`
	Action   Action  `yaml:"action"`

	// Field is the state key ActionSet writes. Empty means the task kind.
	Field string `yaml:"field,omitempty"`

	// Message is the error text of ActionFail.
	Message string `yaml:"message,omitempty"`

	// Requires lists task fields that must be present for the strategy to
	// be eligible.
	Requires []string `yaml:"requires,omitempty"`

	// Children are the tasks predicted by the heuristic and resolved by
	// ActionSpawn.
	Children []ChildSpec `yaml:"children,omitempty"`
}

// ChildSpec declares a child task. String field values of the form $name
// are replaced by the parent task's field of that name.
type ChildSpec struct {
	Kind   string         `yaml:"kind"`
	Fields map[string]any `yaml:"fields,omitempty"`
}

// Load reads and validates a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return c, nil
}

// LoadAll loads every catalog file matched by the patterns, which may use
// doublestar globs such as strategies/**/*.yaml, and merges them in match
// order. Strategy names must be unique across files.
func LoadAll(patterns ...string) (*Catalog, error) {
	var merged Catalog
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("catalog pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			if strings.ContainsAny(pattern, "*?[{") {
				return nil, fmt.Errorf("catalog pattern %q matched no files", pattern)
			}
			// A plain path that does not exist reports the read error.
			matches = []string{pattern}
		}
		for _, path := range matches {
			c, err := Load(path)
			if err != nil {
				return nil, err
			}
			merged.Strategies = append(merged.Strategies, c.Strategies...)
		}
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return &merged, nil
}

// Parse decodes and validates a YAML catalog. Unknown keys are rejected.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks every declared strategy and returns all problems joined.
func (c *Catalog) Validate() error {
	if len(c.Strategies) == 0 {
		return errors.New("no strategies declared")
	}

	var errs []error
	seen := make(map[string]bool, len(c.Strategies))
	for i, sp := range c.Strategies {
		where := fmt.Sprintf("strategies[%d]", i)
		if sp.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", where))
		} else {
			where = fmt.Sprintf("%s (%s)", where, sp.Name)
			if seen[sp.Name] {
				errs = append(errs, fmt.Errorf("%s: duplicate name", where))
			}
			seen[sp.Name] = true
		}
		if sp.TaskType == "" {
			errs = append(errs, fmt.Errorf("%s: task_type is required", where))
		}
		if sp.Cost < 0 {
			errs = append(errs, fmt.Errorf("%s: cost must not be negative", where))
		}
		switch sp.Action {
		case ActionSet, ActionFail:
		case ActionSpawn:
			if len(sp.Children) == 0 {
				errs = append(errs, fmt.Errorf("%s: spawn needs at least one child", where))
			}
		default:
			errs = append(errs, fmt.Errorf("%s: unknown action %q", where, sp.Action))
		}
		for j, child := range sp.Children {
			if child.Kind == "" {
				errs = append(errs, fmt.Errorf("%s: children[%d]: kind is required", where, j))
			}
		}
	}
	return errors.Join(errs...)
}

// Kinds returns the task types handled by the catalog, in declaration order.
func (c *Catalog) Kinds() []solver.Kind {
	var kinds []solver.Kind
	seen := make(map[string]bool)
	for _, sp := range c.Strategies {
		if !seen[sp.TaskType] {
			seen[sp.TaskType] = true
			kinds = append(kinds, solver.Kind(sp.TaskType))
		}
	}
	return kinds
}

// Build creates one strategy per declaration, wrapped by policy.
func (c *Catalog) Build(state *State, policy resilience.Policy) []solver.Strategy {
	out := make([]solver.Strategy, 0, len(c.Strategies))
	for _, sp := range c.Strategies {
		out = append(out, policy.Apply(&Declared{spec: sp, state: state}))
	}
	return out
}

// Declared is a strategy built from a Spec.
type Declared struct {
	spec  Spec
	state *State
}

// NewDeclared builds a strategy from sp writing to state.
func NewDeclared(sp Spec, state *State) *Declared {
	return &Declared{spec: sp, state: state}
}

// Name implements solver.Strategy.
func (d *Declared) Name() string { return d.spec.Name }

// TaskType implements solver.Strategy.
func (d *Declared) TaskType() solver.Kind { return solver.Kind(d.spec.TaskType) }

// Heuristic implements solver.Strategy.
func (d *Declared) Heuristic(task solver.Task) *solver.Heuristic {
	if !d.eligible(task) {
		return nil
	}
	return &solver.Heuristic{
		Cost:       d.spec.Cost,
		ChildTasks: d.children(task),
	}
}

// Execute implements solver.Strategy.
func (d *Declared) Execute(ctx context.Context, task solver.Task, s *solver.Solver) error {
	switch d.spec.Action {
	case ActionSet:
		value, ok := fieldOf(task, ValueField)
		if !ok {
			return fmt.Errorf("%s: task has no %q field", d.spec.Name, ValueField)
		}
		key := d.spec.Field
		if key == "" {
			key = string(task.Kind())
		}
		d.state.Set(key, value)
		return nil

	case ActionFail:
		msg := d.spec.Message
		if msg == "" {
			msg = "declared to fail"
		}
		return fmt.Errorf("%s: %s", d.spec.Name, msg)

	case ActionSpawn:
		for _, child := range d.children(task) {
			if err := s.HandleTask(ctx, child); err != nil {
				return fmt.Errorf("%s: child %s: %w", d.spec.Name, child.Kind(), err)
			}
		}
		return nil

	default:
		return fmt.Errorf("%s: unknown action %q", d.spec.Name, d.spec.Action)
	}
}

func (d *Declared) eligible(task solver.Task) bool {
	for _, field := range d.spec.Requires {
		if _, ok := fieldOf(task, field); !ok {
			return false
		}
	}
	return true
}

// children instantiates the declared child tasks for a parent. A fresh
// slice is built on every call.
func (d *Declared) children(parent solver.Task) []solver.Task {
	if len(d.spec.Children) == 0 {
		return nil
	}
	out := make([]solver.Task, 0, len(d.spec.Children))
	for _, child := range d.spec.Children {
		fields := make(map[string]any, len(child.Fields))
		for k, v := range child.Fields {
			if ref, ok := v.(string); ok && strings.HasPrefix(ref, "$") {
				if pv, ok := fieldOf(parent, strings.TrimPrefix(ref, "$")); ok {
					fields[k] = pv
					continue
				}
			}
			fields[k] = v
		}
		out = append(out, solver.NewRecord(solver.Kind(child.Kind), fields))
	}
	return out
}

type fielder interface {
	Field(key string) (any, bool)
}

func fieldOf(task solver.Task, key string) (any, bool) {
	f, ok := task.(fielder)
	if !ok {
		return nil, false
	}
	return f.Field(key)
}
