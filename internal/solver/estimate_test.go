package solver

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(kind Kind) Task {
	return NewRecord(kind, nil)
}

func costs(candidates []Candidate) []float64 {
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = c.Cost
	}
	return out
}

func names(candidates []Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Strategy.Name()
	}
	return out
}

func TestResolveCostFor_NoEligibleStrategyIsSentinel(t *testing.T) {
	s := New(Config{})
	s.Register(
		&fakeStrategy{name: "other", taskType: "other", cost: 3},
		&fakeStrategy{name: "declines", taskType: "target", decline: true},
	)

	for _, depth := range []int{-1, 0, 1, 2, 8, 50} {
		assert.Equal(t, UnresolvableCost, s.ResolveCostFor(task("target"), depth), "depth %d", depth)
	}
	assert.Equal(t, UnresolvableCost, s.ResolveCostFor(nil, 3))
}

func TestResolveCostFor_TakesMinimum(t *testing.T) {
	s := New(Config{})
	s.Register(
		&fakeStrategy{name: "slow", taskType: "job", cost: 5},
		&fakeStrategy{name: "fast", taskType: "job", cost: 2},
		&fakeStrategy{name: "declines", taskType: "job", cost: 0, decline: true},
	)

	assert.Equal(t, 2.0, s.ResolveCostFor(task("job"), 4))
}

// Children are charged only while maxDepth > 1. At maxDepth == 1 the
// strategy's own cost stands alone and deeper children cost nothing.
func TestResolveCostFor_HorizonDropsChildCosts(t *testing.T) {
	s := New(Config{})
	s.Register(
		&fakeStrategy{name: "parent", taskType: "parent", cost: 2, children: []Task{task("child")}},
		&fakeStrategy{name: "child", taskType: "child", cost: 3},
		&fakeStrategy{name: "orphaned", taskType: "orphaned", cost: 1, children: []Task{task("nobody")}},
	)

	assert.Equal(t, 2.0, s.ResolveCostFor(task("parent"), 1))
	assert.Equal(t, 2.0, s.ResolveCostFor(task("parent"), 0))
	assert.Equal(t, 5.0, s.ResolveCostFor(task("parent"), 2))

	// An unresolvable grandchild past the horizon is not penalised either.
	assert.Equal(t, 1.0, s.ResolveCostFor(task("orphaned"), 1))
	// Within the horizon the sentinel caps the per-task minimum, so the
	// unresolvable child makes the whole task unresolvable.
	assert.Equal(t, UnresolvableCost, s.ResolveCostFor(task("orphaned"), 2))
}

func TestResolveCostFor_SentinelCapsMinimum(t *testing.T) {
	s := New(Config{})
	s.Register(&fakeStrategy{name: "huge", taskType: "job", cost: 2 * UnresolvableCost})

	assert.Equal(t, UnresolvableCost, s.ResolveCostFor(task("job"), 3))
}

func TestFindSolutionsFor_IncludesChildCostsByDepth(t *testing.T) {
	// root -> mid -> leaf
	newSolver := func(depth int) *Solver {
		s := New(Config{SearchDepth: depth})
		s.Register(
			&fakeStrategy{name: "root", taskType: "root", cost: 1, children: []Task{task("mid")}},
			&fakeStrategy{name: "mid", taskType: "mid", cost: 2, children: []Task{task("leaf")}},
			&fakeStrategy{name: "leaf", taskType: "leaf", cost: 4},
		)
		return s
	}

	tests := []struct {
		depth int
		want  float64
	}{
		// The root's direct children are always resolved, at depth-1; at
		// depth 1 that resolution stops at mid's own cost.
		{depth: 1, want: 1 + 2},
		{depth: 2, want: 1 + 2},
		{depth: 3, want: 1 + 2 + 4},
		{depth: 8, want: 1 + 2 + 4},
	}

	for _, tt := range tests {
		got := newSolver(tt.depth).FindSolutionsFor(task("root"))
		require.Len(t, got, 1)
		assert.Equal(t, tt.want, got[0].Cost, "depth %d", tt.depth)
	}
}

func TestFindSolutionsFor_SumsMinimumChildCosts(t *testing.T) {
	s := New(Config{SearchDepth: 2})
	s.Register(
		&fakeStrategy{name: "build", taskType: "build", cost: 1, children: []Task{task("fetch"), task("compile")}},
		&fakeStrategy{name: "fetchRemote", taskType: "fetch", cost: 7},
		&fakeStrategy{name: "fetchCache", taskType: "fetch", cost: 2},
		&fakeStrategy{name: "compile", taskType: "compile", cost: 3},
	)

	got := s.FindSolutionsFor(task("build"))
	require.Len(t, got, 1)
	assert.Equal(t, 1.0+2.0+3.0, got[0].Cost)
	assert.Equal(t, 1.0+2.0+3.0, 1.0+s.ResolveCostFor(task("fetch"), 1)+s.ResolveCostFor(task("compile"), 1))
}

func TestFindSolutionsFor_UnresolvableChildIsPenalised(t *testing.T) {
	s := New(Config{})
	s.Register(
		&fakeStrategy{name: "risky", taskType: "job", cost: 0, children: []Task{task("unknown")}},
		&fakeStrategy{name: "safe", taskType: "job", cost: 50},
	)

	got := s.FindSolutionsFor(task("job"))
	assert.Equal(t, []string{"safe", "risky"}, names(got))
	assert.Equal(t, []float64{50, UnresolvableCost}, costs(got))
}

func TestFindSolutionsFor_SortedAndStable(t *testing.T) {
	s := New(Config{})
	s.Register(
		&fakeStrategy{name: "b1", taskType: "job", cost: 2},
		&fakeStrategy{name: "a", taskType: "job", cost: 1},
		&fakeStrategy{name: "b2", taskType: "job", cost: 2},
		&fakeStrategy{name: "other", taskType: "other", cost: 0},
		&fakeStrategy{name: "b3", taskType: "job", cost: 2},
		&fakeStrategy{name: "no", taskType: "job", decline: true},
	)

	got := s.FindSolutionsFor(task("job"))
	assert.Equal(t, []string{"a", "b1", "b2", "b3"}, names(got))
}

func TestFindSolutionsFor_ClampsInvalidCosts(t *testing.T) {
	s := New(Config{})
	s.Register(
		&fakeStrategy{name: "negative", taskType: "job", cost: -5},
		&fakeStrategy{name: "nan", taskType: "job", cost: math.NaN()},
		&fakeStrategy{name: "one", taskType: "job", cost: 1},
	)

	got := s.FindSolutionsFor(task("job"))
	assert.Equal(t, []string{"negative", "nan", "one"}, names(got))
	assert.Equal(t, []float64{0, 0, 1}, costs(got))
}

func TestFindSolutionsFor_ReevaluatesHeuristics(t *testing.T) {
	st := &fakeStrategy{name: "job", taskType: "job"}
	s := New(Config{})
	s.Register(st)

	s.FindSolutionsFor(task("job"))
	s.FindSolutionsFor(task("job"))
	assert.Equal(t, int64(2), st.estimates.Load())

	st.decline = true
	assert.Empty(t, s.FindSolutionsFor(task("job")))
}

func TestFindSolutionsFor_NilChildIsUnresolvable(t *testing.T) {
	s := New(Config{})
	s.Register(&fakeStrategy{name: "job", taskType: "job", cost: 1, children: []Task{nil}})

	got := s.FindSolutionsFor(task("job"))
	require.Len(t, got, 1)
	assert.Equal(t, 1+UnresolvableCost, got[0].Cost)
}

func TestExplain_MatchesCandidates(t *testing.T) {
	s := New(Config{SearchDepth: 3})
	s.Register(
		&fakeStrategy{name: "viaMid", taskType: "root", cost: 1, children: []Task{task("mid"), task("leaf")}},
		&fakeStrategy{name: "direct", taskType: "root", cost: 4},
		&fakeStrategy{name: "mid", taskType: "mid", cost: 2, children: []Task{task("leaf"), task("missing")}},
		&fakeStrategy{name: "leafA", taskType: "leaf", cost: 3},
		&fakeStrategy{name: "leafB", taskType: "leaf", cost: 1},
	)

	est := s.Explain(task("root"))
	candidates := s.FindSolutionsFor(task("root"))

	require.Len(t, est.Options, len(candidates))
	for i, c := range candidates {
		assert.Equal(t, c.Strategy.Name(), est.Options[i].Strategy)
		assert.Equal(t, c.Cost, est.Options[i].Cost)
	}
	assert.True(t, est.Options[0].Chosen)
	assert.Equal(t, candidates[0].Cost, est.Cost)
	assert.Equal(t, "direct", est.Options[0].Strategy)

	// Every nested estimate agrees with ResolveCostFor at its depth.
	est.Walk(func(e *Estimate) {
		if e == est {
			return
		}
		assert.Equal(t, s.ResolveCostFor(task(e.Kind), e.Depth), e.Cost, "kind %s depth %d", e.Kind, e.Depth)
	})
}

func TestExplain_MarksTruncationAndUnresolvable(t *testing.T) {
	s := New(Config{SearchDepth: 2})
	s.Register(
		&fakeStrategy{name: "root", taskType: "root", cost: 1, children: []Task{task("mid")}},
		&fakeStrategy{name: "mid", taskType: "mid", cost: 2, children: []Task{task("leaf")}},
	)

	est := s.Explain(task("root"))
	require.Len(t, est.Options, 1)
	mid := est.Options[0].Children[0]
	assert.Equal(t, Kind("mid"), mid.Kind)
	assert.Equal(t, 1, mid.Depth)
	require.Len(t, mid.Options, 1)
	assert.True(t, mid.Options[0].Truncated)
	assert.True(t, mid.Options[0].Chosen)
	assert.Empty(t, mid.Options[0].Children)

	none := s.Explain(task("nothing"))
	assert.True(t, none.Unresolvable)
	assert.Equal(t, UnresolvableCost, none.Cost)
}
