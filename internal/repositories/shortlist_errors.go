package repositories

import "fmt"

// ShortlistErrorCode enumerates repository error causes for shortlist operations.
type ShortlistErrorCode string

const (
	// ShortlistErrorUnknown represents an unspecified failure.
	ShortlistErrorUnknown ShortlistErrorCode = "shortlist_unknown"
	// ShortlistErrorEntryNotFound indicates the entry does not exist for the caller.
	ShortlistErrorEntryNotFound ShortlistErrorCode = "shortlist_entry_not_found"
	// ShortlistErrorProfileLocked indicates another household holds a live lock on the profile.
	ShortlistErrorProfileLocked ShortlistErrorCode = "shortlist_profile_locked"
	// ShortlistErrorLockHeld indicates the compare-and-set lost to a live lock held elsewhere.
	ShortlistErrorLockHeld ShortlistErrorCode = "shortlist_lock_held"
	// ShortlistErrorLockNotFound indicates no live lock exists for the profile.
	ShortlistErrorLockNotFound ShortlistErrorCode = "shortlist_lock_not_found"
)

// ShortlistError wraps shortlist persistence failures with machine readable codes.
type ShortlistError struct {
	Op      string
	Code    ShortlistErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ShortlistError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *ShortlistError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewShortlistError constructs a typed shortlist error.
func NewShortlistError(code ShortlistErrorCode, message string, err error) *ShortlistError {
	if message == "" {
		message = string(code)
	}
	return &ShortlistError{Code: code, Message: message, Err: err}
}
