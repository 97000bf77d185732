package repositories

import "fmt"

// HireRequestErrorCode enumerates repository error causes for hire-request operations.
type HireRequestErrorCode string

const (
	// HireRequestErrorUnknown represents an unspecified failure.
	HireRequestErrorUnknown HireRequestErrorCode = "hire_request_unknown"
	// HireRequestErrorNotFound indicates the request document is missing.
	HireRequestErrorNotFound HireRequestErrorCode = "hire_request_not_found"
	// HireRequestErrorDuplicate indicates the pair already has an open request or an active contract.
	HireRequestErrorDuplicate HireRequestErrorCode = "hire_request_duplicate"
	// HireRequestErrorVersionConflict indicates the optimistic version guard failed.
	HireRequestErrorVersionConflict HireRequestErrorCode = "hire_request_version_conflict"
	// HireRequestErrorStalePair indicates the pair marker no longer names this request.
	HireRequestErrorStalePair HireRequestErrorCode = "hire_request_stale_pair"
)

// HireRequestError wraps hire-request persistence failures with machine readable codes.
type HireRequestError struct {
	Op      string
	Code    HireRequestErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *HireRequestError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *HireRequestError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewHireRequestError constructs a typed hire-request error.
func NewHireRequestError(code HireRequestErrorCode, message string, err error) *HireRequestError {
	if message == "" {
		message = string(code)
	}
	return &HireRequestError{Code: code, Message: message, Err: err}
}
