package resilience

import (
	"context"
	"fmt"
	"sync"

	"github.com/rand/goalsolver/internal/solver"
	"golang.org/x/time/rate"
)

// Guarded is a strategy behind a circuit breaker. While the circuit rejects
// calls the strategy reports no heuristic, which makes it ineligible during
// estimation; a call racing a trip fails with ErrCircuitOpen and the solver
// moves on to the next candidate.
type Guarded struct {
	solver.Strategy
	breaker *Breaker
}

// Guard wraps st with a new breaker.
func Guard(st solver.Strategy, config BreakerConfig) *Guarded {
	return &Guarded{Strategy: st, breaker: NewBreaker(config)}
}

// Breaker returns the wrapped breaker.
func (g *Guarded) Breaker() *Breaker {
	return g.breaker
}

// Heuristic implements solver.Strategy.
func (g *Guarded) Heuristic(task solver.Task) *solver.Heuristic {
	if !g.breaker.Ready() {
		return nil
	}
	return g.Strategy.Heuristic(task)
}

// Execute implements solver.Strategy.
func (g *Guarded) Execute(ctx context.Context, task solver.Task, s *solver.Solver) error {
	err := g.breaker.Call(func() error {
		return g.Strategy.Execute(ctx, task, s)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", g.Name(), err)
	}
	return nil
}

// Throttled is a strategy whose executions are paced by a rate limiter.
type Throttled struct {
	solver.Strategy
	limiter *rate.Limiter
}

// Throttle wraps st so that each Execute first waits on limiter.
func Throttle(st solver.Strategy, limiter *rate.Limiter) *Throttled {
	return &Throttled{Strategy: st, limiter: limiter}
}

// Execute implements solver.Strategy.
func (t *Throttled) Execute(ctx context.Context, task solver.Task, s *solver.Solver) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s: wait for rate limiter: %w", t.Name(), err)
	}
	return t.Strategy.Execute(ctx, task, s)
}

// Policy describes how strategies are wrapped before registration.
type Policy struct {
	// Breaker enables a per-strategy circuit breaker when non-nil.
	Breaker *BreakerConfig

	// Limit and Burst enable a per-strategy rate limiter when Limit > 0.
	Limit rate.Limit
	Burst int
}

// Apply wraps st according to the policy. Throttling sits inside the
// breaker so that limiter waits cancelled by the context count as failures.
func (p Policy) Apply(st solver.Strategy) solver.Strategy {
	if p.Limit > 0 {
		burst := p.Burst
		if burst < 1 {
			burst = 1
		}
		st = Throttle(st, rate.NewLimiter(p.Limit, burst))
	}
	if p.Breaker != nil {
		st = Guard(st, *p.Breaker)
	}
	return st
}

// BreakerSet tracks the breakers of guarded strategies by strategy name.
type BreakerSet struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
}

// NewBreakerSet creates an empty set.
func NewBreakerSet() *BreakerSet {
	return &BreakerSet{breakers: make(map[string]*Breaker)}
}

// Track records the breaker of every Guarded strategy among strategies.
func (bs *BreakerSet) Track(strategies ...solver.Strategy) {
	bs.mu.Lock()
	defer bs.mu.Unlock()
	for _, st := range strategies {
		if g, ok := st.(*Guarded); ok {
			bs.breakers[g.Name()] = g.breaker
		}
	}
}

// Get returns the breaker tracked for a strategy name.
func (bs *BreakerSet) Get(name string) (*Breaker, bool) {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	b, ok := bs.breakers[name]
	return b, ok
}

// States returns the current state of every tracked breaker.
func (bs *BreakerSet) States() map[string]CircuitState {
	bs.mu.RLock()
	defer bs.mu.RUnlock()

	out := make(map[string]CircuitState, len(bs.breakers))
	for name, b := range bs.breakers {
		out[name] = b.State()
	}
	return out
}

// ResetAll closes every tracked breaker.
func (bs *BreakerSet) ResetAll() {
	bs.mu.RLock()
	defer bs.mu.RUnlock()
	for _, b := range bs.breakers {
		b.Reset()
	}
}
