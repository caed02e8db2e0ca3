package solver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Config configures a Solver.
type Config struct {
	// SearchDepth bounds how many levels of predicted child tasks are
	// charged during estimation. Values below 1 select DefaultSearchDepth.
	SearchDepth int

	// Logger receives debug output. Nil disables logging.
	Logger *slog.Logger

	// Observer receives an Event for every step of task handling.
	Observer Observer
}

// Solver picks and executes strategies for tasks. It is safe for concurrent
// use; each HandleTask call works on its own snapshot of the registry.
type Solver struct {
	mu  sync.RWMutex
	reg *registry

	logger   *slog.Logger
	observer Observer
}

// New creates a solver with an empty registry.
func New(cfg Config) *Solver {
	if cfg.SearchDepth < 1 {
		cfg.SearchDepth = DefaultSearchDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	return &Solver{
		reg:      newRegistry(nil, cfg.SearchDepth),
		logger:   cfg.Logger,
		observer: cfg.Observer,
	}
}

func (s *Solver) snapshot() *registry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reg
}

// Register appends strategies to the registry. Nil strategies are ignored.
func (s *Solver) Register(strategies ...Strategy) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]Strategy, 0, len(s.reg.ordered)+len(strategies))
	ordered = append(ordered, s.reg.ordered...)
	for _, st := range strategies {
		if st != nil {
			ordered = append(ordered, st)
		}
	}
	s.reg = newRegistry(ordered, s.reg.depth)
}

// Unregister removes every strategy with the given name and reports how
// many were removed.
func (s *Solver) Unregister(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := make([]Strategy, 0, len(s.reg.ordered))
	for _, st := range s.reg.ordered {
		if st.Name() != name {
			ordered = append(ordered, st)
		}
	}
	removed := len(s.reg.ordered) - len(ordered)
	if removed > 0 {
		s.reg = newRegistry(ordered, s.reg.depth)
	}
	return removed
}

// Strategies returns the registered strategies in registration order.
func (s *Solver) Strategies() []Strategy {
	reg := s.snapshot()
	out := make([]Strategy, len(reg.ordered))
	copy(out, reg.ordered)
	return out
}

// SearchDepth returns the configured search depth.
func (s *Solver) SearchDepth() int {
	return s.snapshot().depth
}

// SetSearchDepth changes the search depth used by later estimates.
func (s *Solver) SetSearchDepth(depth int) error {
	if depth < 1 {
		return fmt.Errorf("set search depth %d: %w", depth, ErrInvalidDepth)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reg = &registry{
		ordered: s.reg.ordered,
		byKind:  s.reg.byKind,
		depth:   depth,
	}
	return nil
}

// HandleTask resolves task. Eligible strategies are executed one at a time,
// cheapest estimate first; the first success ends the call. When every
// candidate fails, or none exists, the returned error matches ErrNoSolution.
//
// The context is checked before each attempt. The solver sets no deadline of
// its own, so a strategy that never returns blocks the call.
func (s *Solver) HandleTask(ctx context.Context, task Task) error {
	if task == nil {
		return fmt.Errorf("handle task: %w", ErrNilTask)
	}

	parent, nested := RunFromContext(ctx)
	run := Run{ID: uuid.NewString()}
	if nested {
		run.Parent = parent.ID
		run.Depth = parent.Depth + 1
	}
	ctx = contextWithRun(ctx, run)

	log := s.logger.With("run_id", run.ID, "kind", task.Kind(), "depth", run.Depth)

	start := time.Now()
	candidates := s.FindSolutionsFor(task)
	s.emit(run, Event{
		Type:       EventEstimate,
		Kind:       task.Kind(),
		Candidates: len(candidates),
		Duration:   time.Since(start),
	})
	log.Debug("Estimated candidates", "candidates", len(candidates))

	for i, c := range candidates {
		if err := ctx.Err(); err != nil {
			return s.unresolved(run, log, task, len(candidates), i, err)
		}

		name := c.Strategy.Name()
		s.emit(run, Event{
			Type:       EventAttempt,
			Kind:       task.Kind(),
			Strategy:   name,
			Cost:       c.Cost,
			Attempt:    i + 1,
			Candidates: len(candidates),
		})
		log.Debug("Trying strategy", "strategy", name, "cost", c.Cost, "attempt", i+1)

		attemptStart := time.Now()
		err := c.Strategy.Execute(ctx, task, s)
		elapsed := time.Since(attemptStart)

		if err == nil {
			s.emit(run, Event{
				Type:       EventResolved,
				Kind:       task.Kind(),
				Strategy:   name,
				Cost:       c.Cost,
				Attempt:    i + 1,
				Candidates: len(candidates),
				Duration:   elapsed,
			})
			log.Info("Task resolved", "strategy", name, "attempt", i+1, "duration", elapsed)
			return nil
		}

		s.emit(run, Event{
			Type:       EventAttemptFailed,
			Kind:       task.Kind(),
			Strategy:   name,
			Cost:       c.Cost,
			Attempt:    i + 1,
			Candidates: len(candidates),
			Duration:   elapsed,
			Err:        err,
		})
		log.Debug("Strategy failed", "strategy", name, "error", err)
	}

	return s.unresolved(run, log, task, len(candidates), len(candidates), nil)
}

func (s *Solver) unresolved(run Run, log *slog.Logger, task Task, candidates, attempts int, cause error) error {
	s.emit(run, Event{
		Type:       EventUnresolved,
		Kind:       task.Kind(),
		Attempt:    attempts,
		Candidates: candidates,
		Err:        cause,
	})
	log.Warn("No solution found", "candidates", candidates, "attempts", attempts, "cause", cause)
	return &NoSolutionError{Kind: task.Kind(), Attempts: attempts, Cause: cause}
}

func (s *Solver) emit(run Run, e Event) {
	if s.observer == nil {
		return
	}
	e.RunID = run.ID
	e.ParentRunID = run.Parent
	e.Depth = run.Depth
	e.Time = time.Now()
	s.observer.Observe(e)
}

// HandleTaskAsync runs HandleTask on a new goroutine. The returned channel
// receives exactly one value.
func (s *Solver) HandleTaskAsync(ctx context.Context, task Task) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- s.HandleTask(ctx, task)
	}()
	return done
}

// HandleAll resolves independent tasks concurrently and returns the first
// error. A failure cancels the context seen by the remaining calls, which
// then stop before their next attempt.
func (s *Solver) HandleAll(ctx context.Context, tasks ...Task) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		g.Go(func() error {
			return s.HandleTask(ctx, task)
		})
	}
	return g.Wait()
}
