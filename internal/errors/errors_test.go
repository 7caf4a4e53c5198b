package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
	}{
		{"config code", ErrCodeConfigInvalid, CategoryConfig},
		{"storage code", ErrCodeCorruptIndex, CategoryStorage},
		{"unavailable code", ErrCodeModelUnavailable, CategoryUnavailable},
		{"validation code", ErrCodeQueryEmpty, CategoryValidation},
		{"internal code", ErrCodeSearchFailed, CategoryInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
		})
	}
}

func TestNew_RetryableFlag(t *testing.T) {
	// Given model-layer errors
	timeout := New(ErrCodeModelTimeout, "timed out", nil)
	invalid := New(ErrCodeInvalidInput, "bad input", nil)

	// Then only the network-ish ones are retryable
	assert.True(t, timeout.Retryable)
	assert.False(t, invalid.Retryable)
	assert.True(t, IsRetryable(timeout))
	assert.False(t, IsRetryable(invalid))
}

func TestEngineError_ErrorFormat(t *testing.T) {
	err := New(ErrCodeQueryEmpty, "query is empty", nil)
	assert.Equal(t, "[ERR_403_QUERY_EMPTY] query is empty", err.Error())
}

func TestEngineError_UnwrapChain(t *testing.T) {
	// Given: a wrapped cause
	cause := stderrors.New("connection refused")
	err := Wrap(ErrCodeModelUnavailable, cause)
	require.NotNil(t, err)

	// Then: errors.Is finds the cause through the chain
	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestEngineError_IsMatchesByCode(t *testing.T) {
	a := New(ErrCodeNoResults, "nothing matched", nil)
	b := New(ErrCodeNoResults, "different message", nil)
	c := New(ErrCodeSearchFailed, "other", nil)

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestEngineError_WithDetailChaining(t *testing.T) {
	err := New(ErrCodePartialFailure, "lexical leg failed", nil).
		WithDetail("failed_leg", "lexical").
		WithDetail("surviving_leg", "vector").
		WithSuggestion("check the index directory")

	assert.Equal(t, "lexical", err.Details["failed_leg"])
	assert.Equal(t, "vector", err.Details["surviving_leg"])
	assert.Equal(t, "check the index directory", err.Suggestion)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestPartialFailureError_IsWarningSeverity(t *testing.T) {
	err := PartialFailureError("vector", fmt.Errorf("hnsw closed"))
	assert.Equal(t, SeverityWarning, err.Severity)
	assert.Equal(t, "vector", err.Details["failed_leg"])
	assert.False(t, IsFatal(err))
}

func TestIsFatal_CorruptIndex(t *testing.T) {
	err := StorageError("segment checksum mismatch", nil)
	assert.True(t, IsFatal(err))
}

func TestGetCode_StandardError(t *testing.T) {
	assert.Equal(t, "", GetCode(stderrors.New("plain")))
	assert.Equal(t, ErrCodeQueryEmpty, GetCode(EmptyQueryError()))
}
