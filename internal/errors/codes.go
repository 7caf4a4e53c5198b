// Package errors provides structured error handling for Itihasa.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (index, chunk store, cache files)
//   - 3XX: Model and network errors (embedder, generator, reranker)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates index and chunk store errors.
	CategoryStorage Category = "STORAGE"
	// CategoryUnavailable indicates a required dependency is unreachable.
	CategoryUnavailable Category = "UNAVAILABLE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeIndexNotFound  = "ERR_201_INDEX_NOT_FOUND"
	ErrCodeCorruptIndex   = "ERR_202_CORRUPT_INDEX"
	ErrCodeChunkNotFound  = "ERR_203_CHUNK_NOT_FOUND"
	ErrCodeCachePersist   = "ERR_204_CACHE_PERSIST"
	ErrCodeStoreClosed    = "ERR_205_STORE_CLOSED"

	// Model and network errors (300-399)
	ErrCodeModelTimeout       = "ERR_301_MODEL_TIMEOUT"
	ErrCodeModelUnavailable   = "ERR_302_MODEL_UNAVAILABLE"
	ErrCodeEmbedFailed        = "ERR_303_EMBED_FAILED"
	ErrCodeGenerateFailed     = "ERR_304_GENERATE_FAILED"
	ErrCodeRerankerUnavailable = "ERR_305_RERANKER_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"
	ErrCodeQueryTooLong      = "ERR_404_QUERY_TOO_LONG"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeSearchFailed   = "ERR_502_SEARCH_FAILED"
	ErrCodePartialFailure = "ERR_503_PARTIAL_FAILURE"
	ErrCodeNoResults      = "ERR_504_NO_RESULTS"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion, e.g. "201" from "ERR_201_INDEX_NOT_FOUND"
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryUnavailable
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodePartialFailure, ErrCodeNoResults:
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeModelTimeout, ErrCodeModelUnavailable, ErrCodeRerankerUnavailable:
		return true
	default:
		return false
	}
}
