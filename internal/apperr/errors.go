// Package apperr defines the typed failures surfaced by the portal services.
// Handlers translate them to HTTP statuses via response.Error.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no credential or an invalid/expired one.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrForbidden means the caller is authenticated but lacks the administrator role.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound means the target row does not exist or is soft-deleted.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports malformed input and the constraint it violated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Validation builds a ValidationError for field.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// RateLimitError is returned when a sender is still inside the slow mode window.
type RateLimitError struct {
	WaitSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("slow mode: wait %d seconds before sending another message", e.WaitSeconds)
}

// StoreError wraps a persistence failure. It is retryable from the client's point of view.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

// Store wraps err as a StoreError unless it is nil or already typed.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// AsValidation reports whether err is a ValidationError and returns it.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// AsRateLimit reports whether err is a RateLimitError and returns it.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var re *RateLimitError
	ok := errors.As(err, &re)
	return re, ok
}
