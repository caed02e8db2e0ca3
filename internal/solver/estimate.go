package solver

import (
	"math"
	"sort"
)

// UnresolvableCost is charged for a task that no registered strategy can
// handle. It inflates the branch instead of aborting the estimate.
const UnresolvableCost = 1_000_000.0

// DefaultSearchDepth is used when no search depth is configured.
const DefaultSearchDepth = 8

// registry is an immutable view of the registered strategies. Mutations on
// the Solver replace it wholesale, so an estimate always sees one snapshot.
type registry struct {
	ordered []Strategy
	byKind  map[Kind][]Strategy
	depth   int
}

func newRegistry(ordered []Strategy, depth int) *registry {
	byKind := make(map[Kind][]Strategy)
	for _, st := range ordered {
		byKind[st.TaskType()] = append(byKind[st.TaskType()], st)
	}
	return &registry{
		ordered: ordered,
		byKind:  byKind,
		depth:   depth,
	}
}

// heuristicFor returns st's heuristic for task, or nil when st is not eligible.
// Negative and NaN costs are reported as zero.
func (r *registry) heuristicFor(task Task, st Strategy) *Heuristic {
	if task == nil || st.TaskType() != task.Kind() {
		return nil
	}
	h := st.Heuristic(task)
	if h == nil {
		return nil
	}
	if h.Cost < 0 || math.IsNaN(h.Cost) {
		return &Heuristic{Cost: 0, ChildTasks: h.ChildTasks}
	}
	return h
}

func (r *registry) strategiesFor(task Task) []Strategy {
	if task == nil {
		return nil
	}
	return r.byKind[task.Kind()]
}

// findSolutions scores every eligible strategy for task. Each child of a
// strategy's heuristic is charged with its resolved cost one level shallower
// than the configured depth. The result is stably sorted, cheapest first.
func (r *registry) findSolutions(task Task) []Candidate {
	var candidates []Candidate

	for _, st := range r.strategiesFor(task) {
		h := r.heuristicFor(task, st)
		if h == nil {
			continue
		}

		cost := h.Cost
		for _, child := range h.ChildTasks {
			cost += r.resolveCost(child, r.depth-1)
		}

		candidates = append(candidates, Candidate{Strategy: st, Cost: cost})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Cost < candidates[j].Cost
	})
	return candidates
}

// resolveCost lower-bounds the cost of task as the cheapest eligible
// strategy. Children are only charged while maxDepth > 1; at the horizon a
// strategy's own cost stands alone.
func (r *registry) resolveCost(task Task, maxDepth int) float64 {
	cost := UnresolvableCost

	for _, st := range r.strategiesFor(task) {
		h := r.heuristicFor(task, st)
		if h == nil {
			continue
		}

		total := h.Cost
		if maxDepth > 1 {
			for _, child := range h.ChildTasks {
				total += r.resolveCost(child, maxDepth-1)
			}
		}

		cost = math.Min(cost, total)
	}

	return cost
}

// FindSolutionsFor returns every strategy eligible for task together with
// its estimated total cost, cheapest first. Ties keep registration order.
func (s *Solver) FindSolutionsFor(task Task) []Candidate {
	return s.snapshot().findSolutions(task)
}

// ResolveCostFor estimates the minimum cost of resolving task while looking
// at most maxDepth levels deep. It returns UnresolvableCost when no strategy
// is eligible.
func (s *Solver) ResolveCostFor(task Task, maxDepth int) float64 {
	return s.snapshot().resolveCost(task, maxDepth)
}
