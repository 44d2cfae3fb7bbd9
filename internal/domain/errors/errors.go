package errors

import (
	"errors"
	"fmt"
)

var (
	// Polling errors
	ErrPaymentRefused  = errors.New("payment refused")
	ErrUnexpectedState = errors.New("unexpected payment state")
	ErrPollTimeout     = errors.New("polling timed out")
	ErrPollCancelled   = errors.New("polling cancelled")
	ErrPaymentNotFound = errors.New("payment not found")

	// Reconciliation errors
	ErrDuplicateAction       = errors.New("unresolved action already exists for this payment")
	ErrActionNotFound        = errors.New("pending action not found")
	ErrActionAlreadyResolved = errors.New("action already resolved")
	ErrPaymentNotConfirmed   = errors.New("payment not confirmed")
	ErrUnknownActionKind     = errors.New("unknown action kind")

	// Gateway errors
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrGatewayTimeout     = errors.New("payment gateway request timeout")

	// Lock errors
	ErrLockAcquisitionFailed = errors.New("failed to acquire lock")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
