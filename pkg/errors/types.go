package errors

import (
	"fmt"
)

// Error is a structured error with a stable code, a human-readable message,
// and an optional cause. It implements the standard error interface and is
// the only error type that crosses package boundaries in this subsystem.
//
// Error values are immutable after creation. The Message may be shown to
// end users and must not contain sensitive material (tokens, secrets,
// internal addresses); put that in Details or the Cause chain, which stay
// server-side.
type Error struct {
	// Code is the machine-readable error code (e.g., "token_expired").
	Code Code

	// Message is the human-readable description of the failure.
	Message string

	// Cause is the underlying error, if any. Access it through Unwrap
	// for errors.Is / errors.As chain inspection.
	Cause error

	// Details carries additional structured context for logging, such as
	// the identity key a credential exchange was attempted for.
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Unwrap, errors.Is,
// and errors.As from the standard library.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the HTTP status for this error's code. See
// [Code.HTTPStatus] for the mapping policy.
func (e *Error) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// PublicMessage returns the generic, caller-safe message for this error.
// The gate writes this, not Message, into HTTP responses so that internal
// detail never leaks across the trust boundary.
func (e *Error) PublicMessage() string {
	switch e.Code.HTTPStatus() {
	case 401:
		return "authentication required"
	case 403:
		return "authentication rejected"
	case 504:
		return "upstream timeout"
	case 502:
		return "upstream failure"
	default:
		return "internal error"
	}
}

// WithDetail returns a copy of the error with a single detail key-value
// pair added. The original error is not modified.
func (e *Error) WithDetail(key string, value any) *Error {
	details := make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &Error{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// Format implements fmt.Formatter. Use %v for standard output and %+v for
// detailed output including the cause chain and details.
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "Error{Code: %q, Message: %q", e.Code, e.Message)
			if len(e.Details) > 0 {
				fmt.Fprintf(s, ", Details: %v", e.Details)
			}
			if e.Cause != nil {
				fmt.Fprintf(s, ", Cause: %+v", e.Cause)
			}
			fmt.Fprint(s, "}")
			return
		}
		fallthrough
	case 's':
		fmt.Fprint(s, e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
