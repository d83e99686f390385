package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for callers deciding whether to retry,
// report or abort.
type ErrorKind string

const (
	// KindValidation is a malformed input; nothing was mutated
	KindValidation ErrorKind = "VALIDATION"
	// KindBusinessRule is a rejected operation with a specific reason code; nothing was mutated
	KindBusinessRule ErrorKind = "BUSINESS_RULE"
	// KindNotFound is a missing resource
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindConcurrencyConflict is a lock timeout or version mismatch; safe to retry the whole operation
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	// KindStorageFailure is an unexpected I/O or transaction abort
	KindStorageFailure ErrorKind = "STORAGE_FAILURE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code so wrapped sentinels work with errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new business rule error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Kind:    KindBusinessRule,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string) *DomainError {
	return &DomainError{
		Kind:    KindValidation,
		Code:    code,
		Message: message,
	}
}

// NewConcurrencyError creates a retryable conflict error wrapping cause
func NewConcurrencyError(code, message string, cause error) *DomainError {
	return &DomainError{
		Kind:    KindConcurrencyConflict,
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// NewStorageError wraps an unexpected persistence failure
func NewStorageError(op string, cause error) *DomainError {
	return &DomainError{
		Kind:    KindStorageFailure,
		Code:    "STORAGE_FAILURE",
		Message: fmt.Sprintf("storage failure during %s", op),
		Err:     cause,
	}
}

// Common domain errors
var (
	ErrNotFound            = &DomainError{Kind: KindNotFound, Code: "NOT_FOUND", Message: "Resource not found"}
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewValidationError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewConcurrencyError("CONCURRENCY_CONFLICT", "Resource was modified by another process", nil)
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrInsufficientBalance = NewDomainError("INSUFFICIENT_BALANCE", "Insufficient balance available")
)

// KindOf returns the kind of err, or KindStorageFailure for errors that are
// not domain errors.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindStorageFailure
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool {
	return err != nil && KindOf(err) == KindValidation
}

// IsBusinessRule reports whether err is a business rule violation
func IsBusinessRule(err error) bool {
	return err != nil && KindOf(err) == KindBusinessRule
}

// IsNotFound reports whether err is a not found error
func IsNotFound(err error) bool {
	return err != nil && KindOf(err) == KindNotFound
}

// IsConcurrencyConflict reports whether err can be resolved by retrying
func IsConcurrencyConflict(err error) bool {
	return err != nil && KindOf(err) == KindConcurrencyConflict
}

// IsStorageFailure reports whether err is fatal to the unit of work
func IsStorageFailure(err error) bool {
	return err != nil && KindOf(err) == KindStorageFailure
}

// CodeOf returns the code of a domain error, or an empty string
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
