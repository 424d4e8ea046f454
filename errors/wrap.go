package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a ClientError, the wrapper keeps its code and metadata.
// Context errors map to CANCELED; anything else becomes INTERNAL.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var ce *Error
	if errors.As(err, &ce) {
		wrapped := &Error{
			code:      ce.code,
			category:  ce.category,
			message:   message,
			cause:     err,
			metadata:  ce.Metadata(),
			retryable: ce.retryable,
			timestamp: ce.timestamp,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// FromStatus maps a non-success HTTP status and its body onto the taxonomy.
// 401 and 403 are terminal; every other status keeps the raw status and body.
// 429 is tagged as a resource error and 5xx as transient so that Retryable
// reflects what the provider said.
func FromStatus(status int, body string, opts ...Option) *Error {
	switch {
	case status == http.StatusUnauthorized:
		return Unauthorized(opts...)
	case status == http.StatusForbidden:
		return Forbidden(body, opts...)
	case status == http.StatusTooManyRequests:
		return APIError(status, body, append(opts, WithCategory(CategoryResource))...)
	case status >= 500:
		return APIError(status, body, append(opts, WithCategory(CategoryTransient))...)
	default:
		return APIError(status, body, opts...)
	}
}

// AsClientError extracts a ClientError from an error chain.
// Returns nil if none is found.
func AsClientError(err error) ClientError {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.code == code
	}
	return false
}

// IsCategory checks if any error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.category == category
	}
	return false
}

// IsRetryable checks if the error is retryable.
// Errors outside the taxonomy are not retryable.
func IsRetryable(err error) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Retryable()
	}
	return false
}

// Code extracts the error code from an error, if available.
func Code(err error) ErrorCode {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.code
	}
	return ""
}

// HTTPStatus returns the provider status recorded on err, or 0.
func HTTPStatus(err error) int {
	var ce *Error
	if !errors.As(err, &ce) {
		return 0
	}
	status, convErr := strconv.Atoi(ce.metadata[MetaStatus])
	if convErr != nil {
		return 0
	}
	return status
}

// ResponseBody returns the raw provider response body recorded on err.
func ResponseBody(err error) string {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.metadata[MetaBody]
	}
	return ""
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		inner := errors.Unwrap(err)
		if inner == nil {
			return err
		}
		err = inner
	}
}

// RecoverPanic converts a recovered panic value into an Error.
func RecoverPanic(recovered interface{}) *Error {
	if recovered == nil {
		return nil
	}
	var message string
	switch v := recovered.(type) {
	case error:
		message = v.Error()
	case string:
		message = v
	default:
		message = fmt.Sprintf("%v", v)
	}
	return New(ErrCodePanic, message, WithMetadata("panic_value", fmt.Sprintf("%T", recovered)))
}
