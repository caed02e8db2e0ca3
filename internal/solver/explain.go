package solver

import (
	"math"
	"sort"
)

// Estimate is one task in an explained cost estimate.
type Estimate struct {
	Kind Kind

	// Depth is the remaining search depth the task was estimated with.
	Depth int

	// Cost is the resolved cost: the cheapest option, or UnresolvableCost.
	Cost float64

	// Unresolvable is true when no strategy was eligible.
	Unresolvable bool

	// Options holds one entry per eligible strategy.
	Options []*Option
}

// Option is one eligible strategy within an Estimate.
type Option struct {
	Strategy string

	// OwnCost is the strategy's heuristic cost.
	OwnCost float64

	// Cost is OwnCost plus the charged child costs.
	Cost float64

	// Children are the estimates of the charged child tasks.
	Children []*Estimate

	// Truncated is true when the heuristic declared children that lay
	// beyond the search horizon and were not charged.
	Truncated bool

	// Chosen marks the option that determines the parent's cost.
	Chosen bool
}

// Explain builds the tree behind FindSolutionsFor. The root options are
// ordered the same way as the candidates and carry identical costs.
func (s *Solver) Explain(task Task) *Estimate {
	reg := s.snapshot()

	root := &Estimate{Depth: reg.depth, Cost: UnresolvableCost}
	if task != nil {
		root.Kind = task.Kind()
	}

	for _, st := range reg.strategiesFor(task) {
		h := reg.heuristicFor(task, st)
		if h == nil {
			continue
		}

		opt := &Option{Strategy: st.Name(), OwnCost: h.Cost, Cost: h.Cost}
		for _, child := range h.ChildTasks {
			est := reg.explain(child, reg.depth-1)
			opt.Children = append(opt.Children, est)
			opt.Cost += est.Cost
		}
		root.Options = append(root.Options, opt)
	}

	sort.SliceStable(root.Options, func(i, j int) bool {
		return root.Options[i].Cost < root.Options[j].Cost
	})

	if len(root.Options) == 0 {
		root.Unresolvable = true
		return root
	}
	root.Options[0].Chosen = true
	root.Cost = root.Options[0].Cost
	return root
}

func (r *registry) explain(task Task, maxDepth int) *Estimate {
	est := &Estimate{Depth: maxDepth, Cost: UnresolvableCost}
	if task != nil {
		est.Kind = task.Kind()
	}

	for _, st := range r.strategiesFor(task) {
		h := r.heuristicFor(task, st)
		if h == nil {
			continue
		}

		opt := &Option{Strategy: st.Name(), OwnCost: h.Cost, Cost: h.Cost}
		if maxDepth > 1 {
			for _, child := range h.ChildTasks {
				c := r.explain(child, maxDepth-1)
				opt.Children = append(opt.Children, c)
				opt.Cost += c.Cost
			}
		} else {
			opt.Truncated = len(h.ChildTasks) > 0
		}

		est.Options = append(est.Options, opt)
		est.Cost = math.Min(est.Cost, opt.Cost)
	}

	if len(est.Options) == 0 {
		est.Unresolvable = true
		return est
	}
	for _, opt := range est.Options {
		if opt.Cost == est.Cost {
			opt.Chosen = true
			break
		}
	}
	return est
}

// Walk visits e and every nested estimate depth first.
func (e *Estimate) Walk(fn func(*Estimate)) {
	fn(e)
	for _, opt := range e.Options {
		for _, child := range opt.Children {
			child.Walk(fn)
		}
	}
}
