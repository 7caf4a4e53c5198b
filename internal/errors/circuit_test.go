package errors

import (
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCircuitBreaker_OpensAfterMaxFailures(t *testing.T) {
	// Given: a breaker that trips after 3 failures
	cb := NewCircuitBreaker("reranker", WithMaxFailures(3))
	failing := func() error { return stderrors.New("down") }

	// When: the service fails repeatedly
	for i := 0; i < 3; i++ {
		_ = cb.Execute(failing)
	}

	// Then: the circuit is open and fails fast
	assert.Equal(t, StateOpen, cb.State())
	err := cb.Execute(failing)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("generator", WithMaxFailures(3))

	_ = cb.Execute(func() error { return stderrors.New("blip") })
	_ = cb.Execute(func() error { return stderrors.New("blip") })
	require.Equal(t, 2, cb.Failures())

	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 0, cb.Failures())
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker("reranker",
		WithMaxFailures(1),
		WithResetTimeout(10*time.Millisecond))

	_ = cb.Execute(func() error { return stderrors.New("down") })
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, cb.State())

	// A successful probe closes the circuit again.
	err := cb.Execute(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.State())
}

func TestExecuteWithFallback_UsesFallbackWhenOpen(t *testing.T) {
	cb := NewCircuitBreaker("reranker", WithMaxFailures(1))
	_ = cb.Execute(func() error { return stderrors.New("down") })
	require.Equal(t, StateOpen, cb.State())

	got, err := ExecuteWithFallback(cb,
		func() ([]int, error) { t.Fatal("primary must not run when open"); return nil, nil },
		func() ([]int, error) { return []int{1, 2, 3}, nil })

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}
