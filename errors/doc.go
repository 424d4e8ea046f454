// Package errors provides the structured error taxonomy shared by every
// voyagekit package. Each error carries a code, a category that drives
// retry decisions, optional metadata (HTTP status, response body) and the
// ID of the call that produced it.
//
// # Categories
//
//   - Transient: the call may succeed if repeated (network failure, 5xx)
//   - Permanent: repeating will not help (bad credential, invalid input)
//   - Resource: the provider refused for capacity reasons (429)
//   - Internal: a bug or an unexpected termination
//
// # Usage
//
//	err := errors.FromStatus(resp.StatusCode, string(body))
//	if errors.Is(err, errors.ErrCodeUnauthorized) {
//	    // credential problem, do not retry
//	}
//
//	if errors.IsRetryable(err) {
//	    status := errors.HTTPStatus(err)
//	    body := errors.ResponseBody(err)
//	    ...
//	}
package errors
