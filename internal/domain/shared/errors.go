// Package shared contains error kinds shared by every domain package.
// This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds that can be checked with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")

	// Validation errors
	ErrValidation = errors.New("validation error")
	ErrInvalidID  = errors.New("invalid ID")

	// State errors
	ErrNotLoaded = errors.New("state not loaded")

	// Concurrency errors
	ErrStaleWrite = errors.New("stale revision")

	// External service errors
	ErrTransport          = errors.New("transport error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRateLimited        = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "roster", "attendance", "storage"
	Op      string // Operation that failed, e.g., "AddIntern", "Put"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Roster errors
var (
	ErrEmptyInternName   = NewDomainError("roster", "AddIntern", ErrValidation, "intern name is required")
	ErrInternNotFound    = NewDomainError("roster", "Find", ErrNotFound, "intern not found")
	ErrNoInternSelected  = NewDomainError("attendance", "Mark", ErrValidation, "no intern selected")
	ErrInvalidDate       = NewDomainError("attendance", "History", ErrValidation, "date must be YYYY-MM-DD")
	ErrAttendanceNotRead = NewDomainError("attendance", "Mutate", ErrNotLoaded, "attendance data has not been loaded")
)

// Storage errors
var (
	ErrRemoteUnavailable = NewDomainError("storage", "Request", ErrServiceUnavailable, "remote document store is unavailable")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID)
}

// IsNotLoaded checks if the error reports use before load.
func IsNotLoaded(err error) bool {
	return errors.Is(err, ErrNotLoaded)
}

// IsStaleWrite checks if the error reports a revision mismatch.
func IsStaleWrite(err error) bool {
	return errors.Is(err, ErrStaleWrite)
}

// IsExternalService checks if the error is from an external service.
func IsExternalService(err error) bool {
	return errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrRateLimited)
}
