// Package circuitbreaker tracks consecutive dispatch failures per request type
// and rejects calls while a type's downstream is cooling down.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/domain"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Defaults match the gateway's reference behaviour.
const (
	DefaultThreshold = 5
	DefaultCooldown  = 5 * time.Minute
)

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type typeState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
	probing             bool
}

// Snapshot is a read-only view of one key's breaker state.
type Snapshot struct {
	State               string    `json:"state"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	IsOpen              bool      `json:"is_open"`
	OpenedAt            time.Time `json:"opened_at,omitempty"`
}

// Observer is notified of state transitions. The gateway wires it to metrics.
type Observer func(key domain.RequestType, to string)

type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[domain.RequestType]*typeState
	threshold int
	cooldown  time.Duration
	now       func() time.Time
	observer  Observer
}

func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &CircuitBreaker{
		states:    make(map[domain.RequestType]*typeState),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

// WithObserver registers fn for state transitions.
func (cb *CircuitBreaker) WithObserver(fn Observer) *CircuitBreaker {
	cb.observer = fn
	return cb
}

// Allow returns ErrCircuitOpen while key is open. Once the cooldown has
// elapsed exactly one caller is let through as a probe; others keep getting
// ErrCircuitOpen until the probe reports back or is released.
func (cb *CircuitBreaker) Allow(key domain.RequestType) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.now().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			s.probing = true
			cb.notify(key, stateHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		if s.probing {
			return ErrCircuitOpen
		}
		s.probing = true
		return nil
	default:
		return nil
	}
}

// Release hands back a probe slot without recording an outcome, e.g. when the
// request was answered from cache and never reached the downstream.
func (cb *CircuitBreaker) Release(key domain.RequestType) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if s, ok := cb.states[key]; ok && s.state == stateHalfOpen {
		s.probing = false
	}
}

func (cb *CircuitBreaker) RecordSuccess(key domain.RequestType) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return
	}
	if s.state != stateClosed {
		cb.notify(key, stateClosed)
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
	s.probing = false
	s.openedAt = time.Time{}
}

func (cb *CircuitBreaker) RecordFailure(key domain.RequestType) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		s = &typeState{}
		cb.states[key] = s
	}

	s.consecutiveFailures++
	s.probing = false
	if s.state == stateHalfOpen || s.consecutiveFailures >= cb.threshold {
		if s.state != stateOpen {
			cb.notify(key, stateOpen)
		}
		s.state = stateOpen
		s.openedAt = cb.now()
	}
}

// State returns the current view of key. IsOpen follows the stored counters,
// so an open breaker whose cooldown has passed reports false even before the
// next Allow moves it to half-open.
func (cb *CircuitBreaker) State(key domain.RequestType) Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return Snapshot{State: stateClosed.String()}
	}
	return cb.snapshot(s)
}

// States returns a snapshot of every key that has recorded a failure.
func (cb *CircuitBreaker) States() map[domain.RequestType]Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	out := make(map[domain.RequestType]Snapshot, len(cb.states))
	for k, s := range cb.states {
		out[k] = cb.snapshot(s)
	}
	return out
}

func (cb *CircuitBreaker) snapshot(s *typeState) Snapshot {
	open := s.consecutiveFailures >= cb.threshold &&
		!s.openedAt.IsZero() &&
		cb.now().Sub(s.openedAt) < cb.cooldown
	return Snapshot{
		State:               s.state.String(),
		ConsecutiveFailures: s.consecutiveFailures,
		IsOpen:              open,
		OpenedAt:            s.openedAt,
	}
}

func (cb *CircuitBreaker) notify(key domain.RequestType, to state) {
	if cb.observer != nil {
		cb.observer(key, to.String())
	}
}
