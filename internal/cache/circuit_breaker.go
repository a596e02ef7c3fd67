package cache

import (
	"errors"
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

var ErrCircuitOpen = errors.New("cache circuit breaker is open")

// CircuitBreaker shields callers from a struggling Redis: after maxFailures
// consecutive errors it rejects calls outright until the cooldown passes,
// then lets a few probes through before closing again.
type CircuitBreaker struct {
	mu              sync.Mutex
	state           breakerState
	failureCount    int
	probeSuccesses  int
	lastFailureTime time.Time

	maxFailures int
	cooldown    time.Duration
	probeQuota  int
}

func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		probeQuota:  3,
	}
}

func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}

	if err := fn(); err != nil {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return nil
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		return true
	case breakerOpen:
		if time.Since(cb.lastFailureTime) >= cb.cooldown {
			cb.state = breakerHalfOpen
			cb.probeSuccesses = 0
			return true
		}
		return false
	default: // half-open
		return cb.probeSuccesses < cb.probeQuota
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case breakerClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = breakerOpen
		}
	case breakerHalfOpen:
		cb.state = breakerOpen
		cb.probeSuccesses = 0
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerClosed:
		cb.failureCount = 0
	case breakerHalfOpen:
		cb.probeSuccesses++
		if cb.probeSuccesses >= cb.probeQuota {
			cb.state = breakerClosed
			cb.failureCount = 0
		}
	}
}

func (cb *CircuitBreaker) StateName() string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case breakerOpen:
		return "open"
	case breakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}
