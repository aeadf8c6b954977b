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
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrOAuthExchange   = errors.New("oauth exchange failed")
	ErrUpstream        = errors.New("upstream provider error")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: lower-level error, kept for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is/As.
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

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
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

// Unauthorized is returned when the session cookie is missing, tampered or expired.
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// PayloadTooLarge rejects an upload request whose declared size exceeds limit bytes.
// Handlers answer it with 400, not 413: the request itself is small, the intent is not.
func PayloadTooLarge(size, limit int64) *AppError {
	return &AppError{
		Err:     ErrPayloadTooLarge,
		Message: fmt.Sprintf("file size %d exceeds the %d byte limit", size, limit),
		Field:   "originalFileSize",
	}
}

// OAuthExchange wraps a failed code exchange or profile lookup. The cause is
// never shown to the client.
func OAuthExchange(provider string, cause error) *AppError {
	return &AppError{
		Err:     ErrOAuthExchange,
		Message: fmt.Sprintf("%s sign-in failed", provider),
		Cause:   cause,
	}
}

// Upstream wraps a failure of a third-party dependency (bucket, provider API).
func Upstream(what string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: fmt.Sprintf("%s unavailable", what),
		Cause:   cause,
	}
}
