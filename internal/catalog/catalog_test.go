package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rand/goalsolver/internal/resilience"
	"github.com/rand/goalsolver/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDemoSolver(t *testing.T, state *State, observer solver.Observer) *solver.Solver {
	t.Helper()
	s := solver.New(solver.Config{Observer: observer})
	s.Register(Demo().Build(state, resilience.Policy{})...)
	return s
}

func TestDemo_SetColorLeavesNumberUntouched(t *testing.T) {
	state := NewState(map[string]any{"color": "red", "number": 7})
	s := newDemoSolver(t, state, nil)

	err := s.HandleTask(context.Background(), solver.NewRecord("setColor", map[string]any{"value": "blue"}))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"color": "blue", "number": 7}, state.Snapshot())
}

func TestDemo_SetNumber(t *testing.T) {
	state := NewState(nil)
	s := newDemoSolver(t, state, nil)

	require.NoError(t, s.HandleTask(context.Background(), solver.NewRecord("setNumber", map[string]any{"value": 42})))

	v, ok := state.Get("number")
	require.True(t, ok)
	assert.Equal(t, 42, v)
	_, ok = state.Get("color")
	assert.False(t, ok)
}

func TestDemo_FallsBackFromFailingStrategy(t *testing.T) {
	var tried []string
	observer := solver.ObserverFunc(func(e solver.Event) {
		if e.Type == solver.EventAttempt {
			tried = append(tried, e.Strategy)
		}
	})
	s := newDemoSolver(t, NewState(nil), observer)

	require.NoError(t, s.HandleTask(context.Background(), solver.NewRecord("setColor", map[string]any{"value": "blue"})))
	assert.Equal(t, []string{"quick-paint", "paint"}, tried)
}

func TestDemo_MissingValueMakesSetterIneligible(t *testing.T) {
	s := newDemoSolver(t, NewState(nil), nil)
	task := solver.NewRecord("setColor", nil)

	candidates := s.FindSolutionsFor(task)
	require.Len(t, candidates, 1)
	assert.Equal(t, "quick-paint", candidates[0].Strategy.Name())

	err := s.HandleTask(context.Background(), task)
	var nse *solver.NoSolutionError
	require.ErrorAs(t, err, &nse)
	assert.Equal(t, 1, nse.Attempts)
}

func TestDemo_ThemeSpawnsChildren(t *testing.T) {
	state := NewState(nil)
	s := newDemoSolver(t, state, nil)
	task := solver.NewRecord("applyTheme", map[string]any{"color": "green", "number": 3})

	candidates := s.FindSolutionsFor(task)
	require.Len(t, candidates, 1)
	assert.Equal(t, 0.5, candidates[0].Cost)

	require.NoError(t, s.HandleTask(context.Background(), task))
	assert.Equal(t, map[string]any{"color": "green", "number": 3}, state.Snapshot())
}

func TestDemo_ThemeWithoutFieldsHasNoSolution(t *testing.T) {
	s := newDemoSolver(t, NewState(nil), nil)

	err := s.HandleTask(context.Background(), solver.NewRecord("applyTheme", map[string]any{"color": "green"}))
	assert.ErrorIs(t, err, solver.ErrNoSolution)
}

func TestSpawn_ChildFailurePropagates(t *testing.T) {
	c, err := Parse([]byte(`
strategies:
  - name: parent
    task_type: outer
    action: spawn
    children:
      - kind: inner
  - name: broken
    task_type: inner
    action: fail
    message: nope
`))
	require.NoError(t, err)

	s := solver.New(solver.Config{})
	s.Register(c.Build(NewState(nil), resilience.Policy{})...)

	err = s.HandleTask(context.Background(), solver.NewRecord("outer", nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, solver.ErrNoSolution)
	assert.Contains(t, err.Error(), `"outer"`)
}

func TestChildren_ReferenceSubstitution(t *testing.T) {
	d := NewDeclared(Spec{
		Name:     "copy",
		TaskType: "outer",
		Action:   ActionSpawn,
		Children: []ChildSpec{{Kind: "inner", Fields: map[string]any{"a": "$x", "b": "$missing", "c": 5}}},
	}, NewState(nil))

	h := d.Heuristic(solver.NewRecord("outer", map[string]any{"x": "hello"}))
	require.NotNil(t, h)
	require.Len(t, h.ChildTasks, 1)

	child := h.ChildTasks[0].(solver.Record)
	assert.Equal(t, solver.Kind("inner"), child.Kind())
	assert.Equal(t, map[string]any{"a": "hello", "b": "$missing", "c": 5}, child.Fields)

	other := d.Heuristic(solver.NewRecord("outer", map[string]any{"x": "again"}))
	assert.Equal(t, "again", other.ChildTasks[0].(solver.Record).Fields["a"])
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"empty", "strategies: []\n", "no strategies declared"},
		{"unknown key", "strategies:\n  - name: a\n    task_type: t\n    action: set\n    price: 3\n", "decode"},
		{"missing name", "strategies:\n  - task_type: t\n    action: set\n", "name is required"},
		{"missing type", "strategies:\n  - name: a\n    action: set\n", "task_type is required"},
		{"negative cost", "strategies:\n  - name: a\n    task_type: t\n    action: set\n    cost: -1\n", "cost must not be negative"},
		{"bad action", "strategies:\n  - name: a\n    task_type: t\n    action: dance\n", `unknown action "dance"`},
		{"spawn without children", "strategies:\n  - name: a\n    task_type: t\n    action: spawn\n", "spawn needs at least one child"},
		{"child without kind", "strategies:\n  - name: a\n    task_type: t\n    action: spawn\n    children:\n      - fields: {x: 1}\n", "kind is required"},
		{"duplicate", "strategies:\n  - name: a\n    task_type: t\n    action: set\n  - name: a\n    task_type: u\n    action: set\n", "duplicate name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, demoYAML, 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, c.Strategies, 4)
	assert.Equal(t, []solver.Kind{"setColor", "setNumber", "applyTheme"}, c.Kinds())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read catalog")
}

func TestBuild_AppliesPolicy(t *testing.T) {
	cfg := resilience.DefaultBreakerConfig()
	strategies := Demo().Build(NewState(nil), resilience.Policy{Breaker: &cfg})

	require.Len(t, strategies, 4)
	for _, st := range strategies {
		_, ok := st.(*resilience.Guarded)
		assert.True(t, ok, st.Name())
	}
}

func TestExecute_SetWithoutValue(t *testing.T) {
	d := NewDeclared(Spec{Name: "paint", TaskType: "setColor", Action: ActionSet}, NewState(nil))

	err := d.Execute(context.Background(), solver.NewRecord("setColor", nil), nil)
	assert.ErrorContains(t, err, `no "value" field`)
}

func TestExecute_SetDefaultsFieldToKind(t *testing.T) {
	state := NewState(nil)
	d := NewDeclared(Spec{Name: "any", TaskType: "mode", Action: ActionSet}, state)

	require.NoError(t, d.Execute(context.Background(), solver.NewRecord("mode", map[string]any{"value": "dark"}), nil))
	v, _ := state.Get("mode")
	assert.Equal(t, "dark", v)
}

func TestExecute_FailDefaultMessage(t *testing.T) {
	d := NewDeclared(Spec{Name: "nope", TaskType: "t", Action: ActionFail}, NewState(nil))
	err := d.Execute(context.Background(), solver.NewRecord("t", nil), nil)
	assert.EqualError(t, err, "nope: declared to fail")
}

func TestState(t *testing.T) {
	seed := map[string]any{"b": 1}
	state := NewState(seed)
	seed["b"] = 2

	state.Set("a", "x")
	assert.Equal(t, []string{"a", "b"}, state.Keys())

	snap := state.Snapshot()
	snap["a"] = "changed"
	v, _ := state.Get("a")
	assert.Equal(t, "x", v)
	v, _ = state.Get("b")
	assert.Equal(t, 1, v)
}

type plainTask struct{}

func (plainTask) Kind() solver.Kind { return "setColor" }

func TestRequires_TaskWithoutFields(t *testing.T) {
	d := NewDeclared(Spec{Name: "paint", TaskType: "setColor", Action: ActionSet, Requires: []string{"value"}}, NewState(nil))
	assert.Nil(t, d.Heuristic(plainTask{}))

	free := NewDeclared(Spec{Name: "free", TaskType: "setColor", Action: ActionFail}, NewState(nil))
	assert.NotNil(t, free.Heuristic(plainTask{}))
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "ui", "color"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ui", "color", "paint.yaml"), []byte(`
strategies:
  - name: paint
    task_type: setColor
    action: set
    field: color
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ui", "count.yaml"), []byte(`
strategies:
  - name: count
    task_type: setNumber
    action: set
    field: number
`), 0o644))

	c, err := LoadAll(filepath.Join(dir, "**", "*.yaml"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []solver.Kind{"setColor", "setNumber"}, c.Kinds())

	_, err = LoadAll(filepath.Join(dir, "**", "*.yml"))
	assert.ErrorContains(t, err, "matched no files")

	_, err = LoadAll(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read catalog")

	_, err = LoadAll(filepath.Join(dir, "ui", "count.yaml"), filepath.Join(dir, "ui", "count.yaml"))
	assert.ErrorContains(t, err, "duplicate name")
}
