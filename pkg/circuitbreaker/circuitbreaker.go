package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

// State represents the state of the circuit breaker.
type State int

const (
	// Closed is the initial state where requests are allowed.
	Closed State = iota
	// Open state is when the circuit has tripped and requests are blocked.
	Open
	// HalfOpen allows a limited number of trial requests to test recovery.
	HalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Closed:
		return "Closed"
	case Open:
		return "Open"
	case HalfOpen:
		return "Half-Open"
	default:
		return "Unknown"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is in the Open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker wraps calls to a flaky collaborator (here: the embedding provider)
// so that sustained failures convert into an immediate ErrCircuitOpen instead
// of a slow timeout on every call.
type Breaker struct {
	failureThreshold uint32        // consecutive failures to trip the circuit
	successThreshold uint32        // consecutive half-open successes to close it
	timeout          time.Duration // how long Open lasts before probing

	mu        sync.Mutex
	state     State
	failures  uint32
	successes uint32
	openedAt  time.Time
}

// New creates a Breaker with the specified thresholds.
func New(failureThreshold, successThreshold uint32, timeout time.Duration) *Breaker {
	return &Breaker{
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		timeout:          timeout,
		state:            Closed,
	}
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Execute runs req if the circuit allows it and records the outcome.
func (b *Breaker) Execute(req func() error) error {
	b.mu.Lock()
	if b.state == Open && time.Since(b.openedAt) > b.timeout {
		b.state = HalfOpen
		b.successes = 0
	}
	if b.state == Open {
		b.mu.Unlock()
		return ErrCircuitOpen
	}
	b.mu.Unlock()

	if err := req(); err != nil {
		b.onFailure()
		return err
	}
	b.onSuccess()
	return nil
}

func (b *Breaker) onSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.successes++
		if b.successes >= b.successThreshold {
			b.state = Closed
			b.failures = 0
			b.successes = 0
		}
	case Closed:
		b.failures = 0
	}
}

func (b *Breaker) onFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case HalfOpen:
		b.trip()
	case Closed:
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	}
}

// trip opens the circuit. Caller must hold the lock.
func (b *Breaker) trip() {
	b.state = Open
	b.openedAt = time.Now()
	b.failures = 0
	b.successes = 0
}
