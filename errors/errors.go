package errors

import (
	"fmt"
	"strconv"
	"time"
)

// Metadata keys set by the transport layer.
const (
	MetaStatus = "status"
	MetaBody   = "body"
	MetaCallID = "call_id"
)

// ClientError is the interface for all structured errors in voyagekit.
type ClientError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for retry/handling decisions.
	Category() ErrorCategory

	// Retryable returns true if the operation may succeed on retry.
	Retryable() bool

	// Metadata returns additional context as key-value pairs.
	Metadata() map[string]string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of ClientError.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool // nil means use default based on category
	timestamp time.Time
}

var _ ClientError = (*Error)(nil)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// CallID returns the ID of the call that produced the error, if set.
func (e *Error) CallID() string {
	return e.metadata[MetaCallID]
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithCallID tags the error with the call that produced it.
func WithCallID(id string) Option {
	return WithMetadata(MetaCallID, id)
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// Unauthorized reports a rejected credential. Never retryable.
func Unauthorized(opts ...Option) *Error {
	opts = append([]Option{WithMetadata(MetaStatus, "401")}, opts...)
	return FromCode(ErrCodeUnauthorized, opts...)
}

// Forbidden reports a 403 along with the provider's explanation.
func Forbidden(body string, opts ...Option) *Error {
	opts = append([]Option{
		WithMetadata(MetaStatus, "403"),
		WithMetadata(MetaBody, body),
	}, opts...)
	return New(ErrCodeForbidden, "forbidden: "+body, opts...)
}

// APIError is the catch-all for non-success statuses. The raw status and
// body are kept for the caller to inspect.
func APIError(status int, body string, opts ...Option) *Error {
	opts = append([]Option{
		WithMetadata(MetaStatus, strconv.Itoa(status)),
		WithMetadata(MetaBody, body),
	}, opts...)
	return New(ErrCodeAPI, fmt.Sprintf("api error (status %d): %s", status, body), opts...)
}

// MalformedResponse reports a response that did not match the expected schema.
func MalformedResponse(detail string, opts ...Option) *Error {
	return New(ErrCodeMalformedResponse, "malformed response: "+detail, opts...)
}

// InvalidInput creates a validation error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

// NotFound creates a not found error.
func NotFound(message string, opts ...Option) *Error {
	return New(ErrCodeNotFound, message, opts...)
}

// Canceled reports that a task ended without delivering a result.
func Canceled(message string, opts ...Option) *Error {
	return New(ErrCodeCanceled, message, opts...)
}

// Network reports a request that failed before a response arrived.
func Network(cause error, opts ...Option) *Error {
	opts = append([]Option{WithCause(cause)}, opts...)
	return New(ErrCodeNetworkErr, "request failed", opts...)
}

// Unavailable reports a call refused locally because the service has been
// failing.
func Unavailable(cause error, opts ...Option) *Error {
	opts = append([]Option{WithCause(cause)}, opts...)
	return FromCode(ErrCodeUnavailable, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
