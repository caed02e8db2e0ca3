// Package resilience wraps strategies with failure isolation and pacing.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// CircuitState is the state of a circuit breaker.
type CircuitState int

const (
	// StateClosed lets every call through.
	StateClosed CircuitState = iota

	// StateOpen rejects calls until the recovery timeout elapses.
	StateOpen

	// StateHalfOpen lets a single probe call through.
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig configures a circuit breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit. Default: 5
	FailureThreshold int

	// RecoveryTimeout is how long the circuit stays open before a probe is
	// allowed. Default: 30s
	RecoveryTimeout time.Duration

	// SuccessThreshold is the number of consecutive probe successes needed
	// to close the circuit again. Default: 1
	SuccessThreshold int

	// OnStateChange is called synchronously, without the lock held, after
	// every transition.
	OnStateChange func(from, to CircuitState)
}

// DefaultBreakerConfig returns the default configuration.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 5,
		RecoveryTimeout:  30 * time.Second,
		SuccessThreshold: 1,
	}
}

// Breaker is a circuit breaker. It is safe for concurrent use.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu               sync.Mutex
	state            CircuitState
	failures         int
	successes        int
	openedAt         time.Time
	halfOpenInFlight bool

	stats BreakerStats
}

// BreakerStats are cumulative call counts.
type BreakerStats struct {
	Calls      int64
	Failures   int64
	Successes  int64
	Rejections int64
	Trips      int64
}

// NewBreaker creates a closed breaker. Zero config values take defaults.
func NewBreaker(config BreakerConfig) *Breaker {
	def := DefaultBreakerConfig()
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.RecoveryTimeout <= 0 {
		config.RecoveryTimeout = def.RecoveryTimeout
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = def.SuccessThreshold
	}
	return &Breaker{config: config, now: time.Now}
}

// Ready reports whether a call would currently be let through, without
// reserving the half-open probe.
func (b *Breaker) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		return b.now().Sub(b.openedAt) >= b.config.RecoveryTimeout
	default:
		return !b.halfOpenInFlight
	}
}

// Call runs fn if the breaker allows it and records the outcome.
func (b *Breaker) Call(fn func() error) error {
	change, ok := b.acquire()
	if !ok {
		return ErrCircuitOpen
	}
	b.notify(change)

	err := fn()
	b.notify(b.record(err))
	return err
}

// State returns the current state, moving an expired open circuit to
// half-open.
func (b *Breaker) State() CircuitState {
	b.mu.Lock()
	var change *transition
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.RecoveryTimeout {
		change = b.transitionTo(StateHalfOpen)
	}
	state := b.state
	b.mu.Unlock()

	b.notify(change)
	return state
}

// Reset closes the circuit and clears the failure streak.
func (b *Breaker) Reset() {
	b.mu.Lock()
	change := b.transitionTo(StateClosed)
	b.failures = 0
	b.successes = 0
	b.halfOpenInFlight = false
	b.mu.Unlock()

	b.notify(change)
}

// Stats returns cumulative counts.
func (b *Breaker) Stats() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

type transition struct {
	from, to CircuitState
}

func (b *Breaker) acquire() (*transition, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var change *transition
	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.config.RecoveryTimeout {
			b.stats.Rejections++
			return nil, false
		}
		change = b.transitionTo(StateHalfOpen)
		b.halfOpenInFlight = true
	case StateHalfOpen:
		if b.halfOpenInFlight {
			b.stats.Rejections++
			return nil, false
		}
		b.halfOpenInFlight = true
	}

	b.stats.Calls++
	return change, true
}

func (b *Breaker) record(err error) *transition {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.stats.Successes++
		switch b.state {
		case StateClosed:
			b.failures = 0
		case StateHalfOpen:
			b.halfOpenInFlight = false
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.failures = 0
				b.successes = 0
				return b.transitionTo(StateClosed)
			}
		}
		return nil
	}

	b.stats.Failures++
	switch b.state {
	case StateClosed:
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			return b.trip()
		}
	case StateHalfOpen:
		b.halfOpenInFlight = false
		b.successes = 0
		return b.trip()
	}
	return nil
}

// trip opens the circuit. Must be called with the lock held.
func (b *Breaker) trip() *transition {
	b.openedAt = b.now()
	b.stats.Trips++
	return b.transitionTo(StateOpen)
}

// transitionTo must be called with the lock held.
func (b *Breaker) transitionTo(state CircuitState) *transition {
	if b.state == state {
		return nil
	}
	change := &transition{from: b.state, to: state}
	b.state = state
	return change
}

func (b *Breaker) notify(change *transition) {
	if change != nil && b.config.OnStateChange != nil {
		b.config.OnStateChange(change.from, change.to)
	}
}
