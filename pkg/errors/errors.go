package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Standard sentinel errors for common cases.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")

	// Campaign lifecycle sentinels.
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrValidationBlocked      = errors.New("blocked by critical validation issues")
	ErrCompilationFailed      = errors.New("selection compilation failed")
	ErrConditionTypeMismatch  = errors.New("condition operator does not match property type")
)

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`

	// Details carries structured context for the caller, such as the
	// critical issue list that blocked an activation.
	Details any `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a 404 error.
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:    "NOT_FOUND",
		Message: fmt.Sprintf("%s with id %s not found", resource, id),
		Status:  http.StatusNotFound,
		Err:     ErrNotFound,
	}
}

// AlreadyExists creates a 409 error.
func AlreadyExists(resource, field, value string) *AppError {
	return &AppError{
		Code:    "ALREADY_EXISTS",
		Message: fmt.Sprintf("%s with %s %q already exists", resource, field, value),
		Status:  http.StatusConflict,
		Err:     ErrAlreadyExists,
	}
}

// InvalidInput creates a 400 error.
func InvalidInput(message string) *AppError {
	return &AppError{
		Code:    "INVALID_INPUT",
		Message: message,
		Status:  http.StatusBadRequest,
		Err:     ErrInvalidInput,
	}
}

// InvalidTransition creates a 422 error for a disallowed status hop.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Code:    "INVALID_TRANSITION",
		Message: fmt.Sprintf("cannot transition campaign from %q to %q", from, to),
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrInvalidTransition,
	}
}

// ConcurrentModification creates a 409 error for an optimistic-lock conflict.
func ConcurrentModification(resource, id string, expectedVersion uint64) *AppError {
	return &AppError{
		Code:    "CONCURRENT_MODIFICATION",
		Message: fmt.Sprintf("%s %s was modified concurrently (expected version %d)", resource, id, expectedVersion),
		Status:  http.StatusConflict,
		Err:     ErrConcurrentModification,
	}
}

// ValidationBlocked creates a 422 error carrying the critical issue list that
// blocked the requested transition.
func ValidationBlocked(issues any) *AppError {
	return &AppError{
		Code:    "VALIDATION_BLOCKED",
		Message: "campaign has unresolved critical issues",
		Status:  http.StatusUnprocessableEntity,
		Err:     ErrValidationBlocked,
		Details: issues,
	}
}

// CompilationFailed creates a 503 error for a failed selection compilation.
// The previous compiled set is retained stale; this error reports why a
// fresh set could not be produced.
func CompilationFailed(err error) *AppError {
	return &AppError{
		Code:    "COMPILATION_FAILED",
		Message: "could not compile campaign selection",
		Status:  http.StatusServiceUnavailable,
		Err:     fmt.Errorf("%w: %w", ErrCompilationFailed, err),
	}
}

// ConditionTypeMismatch creates a 400 error for an operator/property family
// mismatch. A mismatched condition invalidates the whole compilation; it is
// never skipped at evaluation time.
func ConditionTypeMismatch(property, operator string) *AppError {
	return &AppError{
		Code:    "CONDITION_TYPE_MISMATCH",
		Message: fmt.Sprintf("operator %q is not valid for property %q", operator, property),
		Status:  http.StatusBadRequest,
		Err:     ErrConditionTypeMismatch,
	}
}

// Internal creates a 500 error.
func Internal(err error) *AppError {
	return &AppError{
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		Status:  http.StatusInternalServerError,
		Err:     err,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrConcurrentModification):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrConditionTypeMismatch):
		return http.StatusBadRequest
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrValidationBlocked):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCompilationFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
