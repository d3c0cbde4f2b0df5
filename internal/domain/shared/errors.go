package shared

import "errors"

// DomainError is an error with a stable machine-readable code. Handlers
// map the code to an HTTP status; the message is safe to show to API
// callers.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func (e *DomainError) Error() string { return e.Message }

// Is matches by code, so errors.Is(err, ErrNotFound) works for any
// DomainError carrying the NOT_FOUND code, not just the sentinel value.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// AsDomainError unwraps err into a DomainError if one is in the chain.
func AsDomainError(err error, target **DomainError) bool {
	return errors.As(err, target)
}

// Sentinel errors shared across domains. Domain packages define their
// own codes for conditions specific to them.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrCurrencyMismatch    = NewDomainError("CURRENCY_MISMATCH", "Amounts have different currencies")
	ErrAccountInactive     = NewDomainError("ACCOUNT_INACTIVE", "Account is not active")
)
