package errors

import (
	"errors"
)

// AsError attempts to convert an error to an *Error, traversing the error
// chain with errors.As. Returns the Error and true on success.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode returns the code carried by an error, or the empty code if the
// error is nil or not an *Error.
func GetCode(err error) Code {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// HasCode reports whether the error carries the given code.
func HasCode(err error, code Code) bool {
	return GetCode(err) == code
}

// IsValidationFailure reports whether the error is a token validation
// rejection: a token was presented and the validator refused it. These map
// to HTTP 403 at the gate.
func IsValidationFailure(err error) bool {
	switch GetCode(err) {
	case CodeInvalidToken, CodeTokenExpired, CodeInvalidIssuer,
		CodeInvalidAudience, CodeInvalidSignature, CodeInvalidClaims:
		return true
	default:
		return false
	}
}

// IsConfigError reports whether the error is a configuration failure that
// should abort process startup rather than fail a request.
func IsConfigError(err error) bool {
	switch GetCode(err) {
	case CodeMissingConfig, CodeInvalidConfig:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether the caller may retry the operation with
// backoff. See [Code.Retryable].
func IsRetryable(err error) bool {
	return GetCode(err).Retryable()
}
