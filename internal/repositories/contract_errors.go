package repositories

import "fmt"

// ContractErrorCode enumerates repository error causes for contract operations.
type ContractErrorCode string

const (
	// ContractErrorUnknown represents an unspecified failure.
	ContractErrorUnknown ContractErrorCode = "contract_unknown"
	// ContractErrorNotFound indicates the contract document is missing.
	ContractErrorNotFound ContractErrorCode = "contract_not_found"
	// ContractErrorInvalidSource indicates the source hire request is not in the accepted state.
	ContractErrorInvalidSource ContractErrorCode = "contract_invalid_source"
	// ContractErrorDuplicateActive indicates the pair already has an active contract
	// or the source request was already converted.
	ContractErrorDuplicateActive ContractErrorCode = "contract_duplicate_active"
	// ContractErrorVersionConflict indicates the optimistic version guard failed.
	ContractErrorVersionConflict ContractErrorCode = "contract_version_conflict"
)

// ContractError wraps contract persistence failures with machine readable codes.
type ContractError struct {
	Op      string
	Code    ContractErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *ContractError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewContractError constructs a typed contract error.
func NewContractError(code ContractErrorCode, message string, err error) *ContractError {
	if message == "" {
		message = string(code)
	}
	return &ContractError{Code: code, Message: message, Err: err}
}
