package errors

import (
	"errors"
	"fmt"
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
	ErrInternal
	ErrValidation
	ErrPermissionDenied
	ErrCapabilityUnavailable
	ErrDuplicate
	ErrPersistence
)

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
		Message: "internal error",
		Err:     err,
	}
}

// Validation reports a record that failed required-field checks before any I/O.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrValidation,
		Message: message,
	}
}

// PermissionDenied reports an operation attempted without authorization.
func PermissionDenied(operation string) *AppError {
	return &AppError{
		Code:    ErrPermissionDenied,
		Message: fmt.Sprintf("%s requires health data authorization", operation),
	}
}

// CapabilityUnavailable reports that the platform health integration is absent.
func CapabilityUnavailable(err error) *AppError {
	return &AppError{
		Code:    ErrCapabilityUnavailable,
		Message: "platform health integration is unavailable on this device",
		Err:     err,
	}
}

// Duplicate reports an insert that reused an existing record id.
func Duplicate(id string) *AppError {
	return &AppError{
		Code:    ErrDuplicate,
		Message: fmt.Sprintf("record %s already exists", id),
	}
}

// Persistence reports a durable read or write failure.
func Persistence(message string, err error) *AppError {
	return &AppError{
		Code:    ErrPersistence,
		Message: message,
		Err:     err,
	}
}

// CodeOf extracts the ErrorCode from err, or ErrInternal when err is not an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}
