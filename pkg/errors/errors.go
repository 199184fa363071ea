package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrInvalidTransition
	ErrInsufficientStock
	ErrAlreadyDispensed
	ErrAlreadyBilled
	ErrConflict
	ErrPersistence
)

// CodeOf returns the error code carried by err, or ErrInternal for
// errors that did not originate from this package.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// HTTPStatus maps an error code onto the HTTP status handlers respond
// with. Workflow conflicts (stale status, exhausted stock, repeat
// dispensing or billing) all surface as 409.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrForbidden:
		return http.StatusForbidden
	case ErrInvalidTransition, ErrInsufficientStock,
		ErrAlreadyDispensed, ErrAlreadyBilled, ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error constructors
func NotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func BadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func Internal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: message,
	}
}

// InvalidTransition reports an appointment status change that is not in
// the workflow transition table.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    ErrInvalidTransition,
		Message: fmt.Sprintf("invalid status transition %s -> %s", from, to),
	}
}

// InsufficientStock reports a dispensing request that exceeds the total
// available stock for a medicine.
func InsufficientStock(medicine string, requested, available int) *AppError {
	return &AppError{
		Code:    ErrInsufficientStock,
		Message: fmt.Sprintf("insufficient stock for %s: requested %d, available %d", medicine, requested, available),
	}
}

func AlreadyDispensed(prescriptionID string) *AppError {
	return &AppError{
		Code:    ErrAlreadyDispensed,
		Message: fmt.Sprintf("prescription %s has already been dispensed", prescriptionID),
	}
}

func AlreadyBilled(appointmentID string) *AppError {
	return &AppError{
		Code:    ErrAlreadyBilled,
		Message: fmt.Sprintf("appointment %s has already been billed", appointmentID),
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// Persistence wraps a failed multi-step write. The transaction is rolled
// back before this error is returned, so callers never observe partial
// state.
func Persistence(operation string, err error) *AppError {
	return &AppError{
		Code:    ErrPersistence,
		Message: fmt.Sprintf("failed to persist %s", operation),
		Err:     err,
	}
}
