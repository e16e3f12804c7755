package utils

import (
	"errors"
	"net/http"
)

// Sentinel kinds. Every AppError unwraps to exactly one of these.
var (
	ErrValidation     = errors.New("validation error")
	ErrAuthentication = errors.New("authentication error")
	ErrAuthorization  = errors.New("authorization error")
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("conflict")
	ErrRateLimited    = errors.New("rate limited")
	ErrPersistence    = errors.New("persistence error")
)

const genericErrorMessage = "Internal server error"

// AppError carries a client-facing message together with its kind
type AppError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As
func (e *AppError) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// ValidationError reports missing or malformed input (400)
func ValidationError(message string) error {
	return &AppError{Kind: ErrValidation, Message: message}
}

// AuthenticationError reports a missing, invalid or expired credential (401)
func AuthenticationError(message string) error {
	return &AppError{Kind: ErrAuthentication, Message: message}
}

// AuthorizationError reports a valid credential without enough privilege (403)
func AuthorizationError(message string) error {
	return &AppError{Kind: ErrAuthorization, Message: message}
}

// NotFoundError reports a referenced record that does not exist (404)
func NotFoundError(message string) error {
	return &AppError{Kind: ErrNotFound, Message: message}
}

// ConflictError reports a duplicate unique field. Answered with 400 for client compatibility.
func ConflictError(message string) error {
	return &AppError{Kind: ErrConflict, Message: message}
}

// RateLimitError reports a client that exceeded its request budget (429)
func RateLimitError(message string) error {
	return &AppError{Kind: ErrRateLimited, Message: message}
}

// PersistenceError wraps an unexpected store failure. The cause is logged, never returned.
func PersistenceError(err error) error {
	return &AppError{Kind: ErrPersistence, Message: genericErrorMessage, Err: err}
}

// StatusCode maps an error to its HTTP status. Unknown errors are 500.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the text that may be shown to a client for err
func PublicMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) && !errors.Is(err, ErrPersistence) {
		return appErr.Message
	}
	return genericErrorMessage
}
