package cache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBackend = errors.New("backend down")

func TestCircuitBreaker_StaysClosedOnSuccess(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 10; i++ {
		err := cb.Execute(func() error { return nil })
		assert.NoError(t, err)
	}
	assert.Equal(t, "closed", cb.StateName())
}

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return errBackend })
		assert.ErrorIs(t, err, errBackend)
	}
	assert.Equal(t, "open", cb.StateName())

	err := cb.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Minute)

	cb.Execute(func() error { return errBackend })
	cb.Execute(func() error { return errBackend })
	cb.Execute(func() error { return nil })
	cb.Execute(func() error { return errBackend })
	cb.Execute(func() error { return errBackend })

	assert.Equal(t, "closed", cb.StateName())
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker(2, 10*time.Millisecond)

	cb.Execute(func() error { return errBackend })
	cb.Execute(func() error { return errBackend })
	assert.Equal(t, "open", cb.StateName())

	time.Sleep(20 * time.Millisecond)

	// probes succeed until the quota closes the breaker again
	for i := 0; i < 3; i++ {
		err := cb.Execute(func() error { return nil })
		assert.NoError(t, err)
	}
	assert.Equal(t, "closed", cb.StateName())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	cb := NewCircuitBreaker(2, 10*time.Millisecond)

	cb.Execute(func() error { return errBackend })
	cb.Execute(func() error { return errBackend })

	time.Sleep(20 * time.Millisecond)

	err := cb.Execute(func() error { return errBackend })
	assert.ErrorIs(t, err, errBackend)
	assert.Equal(t, "open", cb.StateName())
}
