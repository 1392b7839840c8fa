// Package errors defines the typed failures surfaced at the HTTP boundary.
// Service code keeps returning plain wrapped errors; the handler and
// middleware layers translate those into ServiceError values so every caller
// sees a stable code, message and status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failure for API consumers.
type ErrorCode string

const (
	CodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	CodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	CodeInvalidToken      ErrorCode = "INVALID_TOKEN"
	CodeForbidden         ErrorCode = "FORBIDDEN"
	CodeNotFound          ErrorCode = "NOT_FOUND"
	CodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	CodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// ServiceError is a classified failure with an HTTP mapping.
type ServiceError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Details    map[string]interface{}
	cause      error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is / errors.As.
func (e *ServiceError) Unwrap() error { return e.cause }

// WithDetails returns a copy carrying an extra detail entry.
func (e *ServiceError) WithDetails(key string, value interface{}) *ServiceError {
	clone := *e
	clone.Details = make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return &clone
}

// ValidationFailed reports malformed or out-of-range input, rejected before
// any service logic runs.
func ValidationFailed(message string) *ServiceError {
	if message == "" {
		message = "Request validation failed"
	}
	return &ServiceError{Code: CodeValidationFailed, Message: message, HTTPStatus: http.StatusBadRequest}
}

// Unauthorized reports a request with no usable identity.
func Unauthorized(message string) *ServiceError {
	if message == "" {
		message = "Authentication required"
	}
	return &ServiceError{Code: CodeUnauthorized, Message: message, HTTPStatus: http.StatusUnauthorized}
}

// InvalidToken reports a bearer token that failed verification.
func InvalidToken(cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeInvalidToken,
		Message:    "Invalid or expired token",
		HTTPStatus: http.StatusUnauthorized,
		cause:      cause,
	}
}

// Forbidden reports a reference to a row owned by someone else.
func Forbidden(message string) *ServiceError {
	if message == "" {
		message = "Access denied"
	}
	return &ServiceError{Code: CodeForbidden, Message: message, HTTPStatus: http.StatusForbidden}
}

// NotFound reports an absent row. Rows owned by other users surface the same
// way so existence never leaks across accounts.
func NotFound(resource string) *ServiceError {
	message := "Resource not found"
	if resource != "" {
		message = resource + " not found"
	}
	return &ServiceError{Code: CodeNotFound, Message: message, HTTPStatus: http.StatusNotFound}
}

// RateLimitExceeded reports a request rejected by throttling.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    "Rate limit exceeded",
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]interface{}{"limit": limit, "window": window},
	}
}

// Internal reports an unexpected failure without exposing its cause.
func Internal(message string, cause error) *ServiceError {
	if message == "" {
		message = "Internal server error"
	}
	return &ServiceError{Code: CodeInternal, Message: message, HTTPStatus: http.StatusInternalServerError, cause: cause}
}

// GetServiceError extracts a ServiceError from err, or nil if none is in the
// chain.
func GetServiceError(err error) *ServiceError {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr
	}
	return nil
}
