// Package errors provides standardized error handling for the Console API.
//
// Every handled failure surfaces as an AppError: a machine-readable code, a
// human message, optional structured details, and an HTTP status. The same
// type is used for REST responses and for `error` envelopes on the framed
// link — only the transport differs.
package errors

import (
	"fmt"
	"net/http"
)

// AppError represents a standardized application error with HTTP context.
type AppError struct {
	// Code is a machine-readable identifier, UPPER_SNAKE_CASE.
	Code string `json:"code"`

	// Message is human-readable and safe to show to a caller.
	Message string `json:"message"`

	// Details carries optional specifics: the details passed to Validation, or
	// the wrapped error's text for Wrap and DatabaseError.
	Details []string `json:"details,omitempty"`

	// StatusCode is the HTTP status to return; irrelevant on the frame transport.
	StatusCode int `json:"-"`
}

func (e *AppError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the wire shape of a REST error body: {error, message}.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// Error code constants, one per kind named in the error handling design.
const (
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeValidation      = "VALIDATION"
	CodeMalformedFrame  = "MALFORMED"
	CodeRateLimited     = "RATE_LIMITED"
	CodeInvalidState    = "INVALID_STATE"
	CodeTooManyPoints   = "TOO_MANY_POINTS"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInternal        = "INTERNAL"
)

func statusFor(code string) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeMalformedFrame:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeTooManyPoints:
		return http.StatusUnprocessableEntity
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// New builds an AppError with the status implied by code.
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusFor(code)}
}

func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message, Details: e.Details}
}

// Convenience constructors, mirroring §7 of the design.

func Unauthorized(message string) *AppError { return New(CodeUnauthorized, message) }

func Forbidden(message string) *AppError { return New(CodeForbidden, message) }

func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

func Conflict(message string) *AppError { return New(CodeConflict, message) }

func Validation(message string, details ...string) *AppError {
	err := New(CodeValidation, message)
	err.Details = details
	return err
}

func MalformedFrame(message string) *AppError { return New(CodeMalformedFrame, message) }

func RateLimited() *AppError {
	return New(CodeRateLimited, "rate limit exceeded")
}

func InvalidState(from, to string) *AppError {
	return New(CodeInvalidState, fmt.Sprintf("cannot transition from %s to %s", from, to))
}

func TooManyPoints() *AppError {
	return New(CodeTooManyPoints, "query would return more than 500 points; widen granularity or narrow the range")
}

func BadRequest(message string) *AppError { return New(CodeBadRequest, message) }

func Internal(message string) *AppError { return New(CodeInternal, message) }

func Wrap(code, message string, err error) *AppError {
	e := New(code, message)
	if err != nil {
		e.Details = []string{err.Error()}
	}
	return e
}

func DatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "database operation failed", err)
}
