package errors

import (
	"errors"
	"fmt"
)

// Error categories. Every error surfaced by the attachment subsystem wraps
// exactly one of these so callers can branch with errors.Is.
var (
	// ErrValidation indicates bad input: size, type, empty payload, oversized content
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates the referenced attachment does not exist or is deleted
	ErrNotFound = errors.New("resource not found")

	// ErrIO indicates a physical write/move/delete failure
	ErrIO = errors.New("storage i/o failure")

	// ErrParse indicates malformed rich-text input
	ErrParse = errors.New("malformed content")

	// ErrConflict indicates a concurrent update won the race
	ErrConflict = errors.New("conflicting concurrent update")

	// ErrUnauthorized indicates unauthorized access
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates forbidden access
	ErrForbidden = errors.New("forbidden")

	// ErrInternal indicates an internal server error
	ErrInternal = errors.New("internal server error")
)

// Error codes for API responses
const (
	CodeNotFound      = "NOT_FOUND"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeIOError       = "IO_ERROR"
	CodeParseError    = "PARSE_ERROR"
	CodeConflict      = "CONFLICT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError represents an application error with context.
// Err is the category sentinel, Cause the underlying failure (may be nil).
type AppError struct {
	Err     error
	Cause   error
	Message string
	Code    string
}

// Error implements the error interface
func (e *AppError) Error() string {
	switch {
	case e.Message != "" && e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return e.Cause.Error()
	default:
		return e.Err.Error()
	}
}

// Unwrap exposes both the category and the cause to errors.Is / errors.As
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// NewAppError creates a new AppError
func NewAppError(err error, message string, code string) *AppError {
	return &AppError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// NewValidationError creates an ErrValidation error with a formatted message
func NewValidationError(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: fmt.Sprintf(format, args...),
		Code:    CodeInvalidInput,
	}
}

// NewNotFoundError creates an ErrNotFound error with a formatted message
func NewNotFoundError(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf(format, args...),
		Code:    CodeNotFound,
	}
}

// NewIOError wraps a storage failure for the named operation
func NewIOError(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrIO,
		Cause:   cause,
		Message: op,
		Code:    CodeIOError,
	}
}

// NewParseError wraps a content parsing failure
func NewParseError(cause error) *AppError {
	return &AppError{
		Err:     ErrParse,
		Cause:   cause,
		Message: "failed to parse content",
		Code:    CodeParseError,
	}
}

// NewConflictError creates an ErrConflict error with a formatted message
func NewConflictError(format string, args ...any) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf(format, args...),
		Code:    CodeConflict,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsValidation checks if the error is a validation error
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsIO checks if the error is a storage i/o error
func IsIO(err error) bool {
	return errors.Is(err, ErrIO)
}

// IsParse checks if the error is a content parse error
func IsParse(err error) bool {
	return errors.Is(err, ErrParse)
}

// IsConflict checks if the error is a concurrent update conflict
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// GetErrorCode returns the appropriate error code for an error
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Code != "" {
		return appErr.Code
	}

	switch {
	case IsNotFound(err):
		return CodeNotFound
	case IsValidation(err):
		return CodeInvalidInput
	case IsIO(err):
		return CodeIOError
	case IsParse(err):
		return CodeParseError
	case IsConflict(err):
		return CodeConflict
	case errors.Is(err, ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternalError
	}
}
