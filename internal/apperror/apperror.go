// Package apperror defines the error kinds shared by every layer.
//
// Services return *AppError values; handlers translate the kind (the sentinel
// in Err) into an HTTP status with errors.Is. Repositories use the same type
// for unique-constraint violations so callers can pattern-match on the
// colliding field instead of sniffing driver error strings.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrConflict        = errors.New("conflict")
	ErrForbidden       = errors.New("forbidden")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrUniqueViolation = errors.New("unique constraint violated")
	ErrTransaction     = errors.New("transaction failed")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying failure, kept for errors.Is / errors.As
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause, so
// errors.Is(err, ErrTransaction) and errors.Is(err, context.DeadlineExceeded)
// can both hold for the same error.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict: %s", resource, message),
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation requires an authenticated
// subject and none is present. HTTP handlers map this to 401.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// UniqueViolation reports that an insert or update collided with a unique
// constraint. Field names the colliding column ("email", "external_id",
// "industry"). cause is the raw driver error and may be nil.
func UniqueViolation(table, field string, cause error) *AppError {
	return &AppError{
		Err:     ErrUniqueViolation,
		Message: fmt.Sprintf("unique constraint violated on %s.%s", table, field),
		Field:   field,
		Cause:   cause,
	}
}

// TransactionFailed wraps the failure of an atomic multi-step operation.
// The message carries the cause so callers get one descriptive error.
func TransactionFailed(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrTransaction,
		Message: fmt.Sprintf("%s: %v", message, cause),
		Cause:   cause,
	}
}

// IsUniqueViolation reports whether err is a unique violation on field.
// An empty field matches any unique violation.
func IsUniqueViolation(err error, field string) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) || !errors.Is(appErr.Err, ErrUniqueViolation) {
		return false
	}
	return field == "" || appErr.Field == field
}
