// Package apperrors defines coded domain errors and their HTTP translation.
// Services wrap infrastructure sentinels into these codes; the transport layer
// renders them into a consistent JSON envelope.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code identifies a class of domain error.
type Code string

const (
	CodeBadRequest        Code = "bad_request"
	CodeValidation        Code = "validation_error"
	CodeNotFound          Code = "not_found"
	CodeConflict          Code = "conflict"
	CodeInsufficientFunds Code = "insufficient_funds"

	// Reasoning codes surface generative model failures without leaking
	// provider details to clients.
	CodeReasoningUnavailable Code = "reasoning_unavailable"
	CodeReasoningMalformed   Code = "reasoning_malformed"
	CodeReasoningTimeout     Code = "reasoning_timeout"

	CodeInternal Code = "internal_error"
)

// Error is a domain error carrying a machine-readable code and a safe,
// user-facing message. Wrapped causes stay server-side.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates a domain error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a coded error. The cause is never rendered to clients.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf extracts the safe message from err, defaulting to a generic one.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "internal error"
}

// ToHTTPStatus maps a domain error code to an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeInsufficientFunds:
		return http.StatusUnprocessableEntity
	case CodeReasoningUnavailable:
		return http.StatusServiceUnavailable
	case CodeReasoningTimeout:
		return http.StatusGatewayTimeout
	case CodeReasoningMalformed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
