package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates rate or quota exhaustion.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates programming or data errors.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTransient, CategoryResource:
		return true
	default:
		return false
	}
}

// ErrorCode identifies specific error types within categories.
type ErrorCode string

const (
	// Transient errors
	ErrCodeProviderError ErrorCode = "PROVIDER_ERROR" // Embedding provider failed
	ErrCodeTimeout       ErrorCode = "TIMEOUT"        // Operation timed out

	// Permanent errors
	ErrCodeEmptySelection ErrorCode = "EMPTY_SELECTION" // No competencies selected
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"   // Malformed or invalid input
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"       // Entity does not exist
	ErrCodeNotConfigured  ErrorCode = "NOT_CONFIGURED"  // Feature not configured
	ErrCodeCanceled       ErrorCode = "CANCELED"        // Operation was canceled

	// Internal errors
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH" // Vectors of unequal length
	ErrCodeCorruption        ErrorCode = "CORRUPTION"         // Stored data could not be decoded
	ErrCodeInternal          ErrorCode = "INTERNAL"           // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeProviderError, ErrCodeTimeout:
		return CategoryTransient

	case ErrCodeEmptySelection, ErrCodeInvalidInput, ErrCodeNotFound,
		ErrCodeNotConfigured, ErrCodeCanceled:
		return CategoryPermanent

	case ErrCodeDimensionMismatch, ErrCodeCorruption, ErrCodeInternal:
		return CategoryInternal

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeProviderError:     "embedding provider error",
	ErrCodeTimeout:           "operation timed out",
	ErrCodeEmptySelection:    "no competencies selected",
	ErrCodeInvalidInput:      "invalid input provided",
	ErrCodeNotFound:          "not found",
	ErrCodeNotConfigured:     "not configured",
	ErrCodeCanceled:          "operation canceled",
	ErrCodeDimensionMismatch: "vector dimension mismatch",
	ErrCodeCorruption:        "stored data corrupted",
	ErrCodeInternal:          "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
