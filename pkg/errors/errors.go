// Package errors provides the structured error types used throughout the
// StricklySoft authentication subsystem. Every failure that can cross the
// request boundary carries a stable, machine-readable code so that gateways,
// clients, and alerting rules can react to the condition without parsing
// error text.
//
// # Error Codes
//
// Codes are short snake_case strings ("token_expired", "invalid_claims").
// They are stable: once a code is assigned to a condition it never changes.
// Only the code is surfaced to callers; the underlying cause stays inside
// the error chain for logs and traces.
//
// # Fail-Closed Policy
//
// The authentication pipeline never defaults ambiguous input to success.
// Every code in this package describes a rejection or an operational
// failure; there is no "partial success" state.
//
// # Usage
//
// Create a new error:
//
//	err := errors.New(errors.CodeTokenExpired, "token expired 5m ago")
//
// Wrap an underlying cause:
//
//	err := errors.Wrap(err, errors.CodeRequestFailed, "credential exchange failed")
//
// Inspect at the boundary:
//
//	if e, ok := errors.AsError(err); ok {
//	    w.WriteHeader(e.HTTPStatus())
//	    writeJSON(w, map[string]string{"error": e.Code.String()})
//	}
package errors
