package errors

// ErrorCategory classifies errors by their nature and retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates temporary failures where retry may succeed.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryResource indicates the provider refused for capacity reasons.
	// API errors with status 429 carry this category.
	CategoryResource ErrorCategory = "resource"

	// CategoryInternal indicates unexpected errors, bugs, or abnormal termination.
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
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR" // Request never got a response
	ErrCodeUnavailable ErrorCode = "UNAVAILABLE" // Circuit breaker refused the call

	// Permanent errors
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"       // Credential rejected
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"          // Credential valid, access denied
	ErrCodeAPI               ErrorCode = "API_ERROR"          // Any other non-success status
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE" // Response did not match the schema
	ErrCodeInvalidInput      ErrorCode = "INVALID_INPUT"      // Rejected before any network activity
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"          // Call succeeded but produced nothing usable
	ErrCodeCanceled          ErrorCode = "CANCELED"           // No result was delivered

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
	ErrCodePanic    ErrorCode = "PANIC"    // Recovered from panic
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeNetworkErr, ErrCodeUnavailable:
		return CategoryTransient

	case ErrCodeUnauthorized, ErrCodeForbidden, ErrCodeAPI, ErrCodeMalformedResponse,
		ErrCodeInvalidInput, ErrCodeNotFound, ErrCodeCanceled:
		return CategoryPermanent

	default:
		return CategoryInternal
	}
}

// DefaultRetryable returns whether this error code is typically retryable.
func (c ErrorCode) DefaultRetryable() bool {
	return c.DefaultCategory().IsRetryable()
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeNetworkErr:        "network connectivity error",
	ErrCodeUnavailable:       "service temporarily unavailable",
	ErrCodeUnauthorized:      "unauthorized: invalid API key",
	ErrCodeForbidden:         "forbidden",
	ErrCodeAPI:               "API request failed",
	ErrCodeMalformedResponse: "malformed response",
	ErrCodeInvalidInput:      "invalid input provided",
	ErrCodeNotFound:          "no matching documents found",
	ErrCodeCanceled:          "task canceled",
	ErrCodeInternal:          "internal error",
	ErrCodePanic:             "recovered from panic",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
