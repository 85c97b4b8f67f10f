package errors

import "net/http"

// Code is a stable, machine-readable identifier for an error condition in
// the authentication subsystem. Codes are surfaced verbatim in API error
// responses and in structured logs; they never change once assigned.
//
// Codes are grouped by where the condition is detected:
//
//   - token extraction and validation (gate + validator)
//   - credential exchange (downstream authority)
//   - configuration (startup only, never per-request)
type Code string

const (
	// Token extraction and validation. These map to HTTP 401 when the
	// request carried no usable token, and HTTP 403 when a token was
	// presented but rejected.

	// CodeMissingToken indicates the request carried no Authorization
	// header, or the header did not use the Bearer scheme.
	CodeMissingToken Code = "missing_token"

	// CodeInvalidToken indicates the presented token is structurally
	// malformed (not three dot-separated base64url segments).
	CodeInvalidToken Code = "invalid_token"

	// CodeTokenExpired indicates the token's exp claim is in the past.
	// Expiry is checked before signature verification, so an expired
	// token reports this code regardless of signature validity.
	CodeTokenExpired Code = "token_expired"

	// CodeInvalidIssuer indicates the iss claim does not match the
	// configured expected issuer.
	CodeInvalidIssuer Code = "invalid_issuer"

	// CodeInvalidAudience indicates the aud claim does not match the
	// configured expected audience.
	CodeInvalidAudience Code = "invalid_audience"

	// CodeInvalidSignature indicates signature verification failed after
	// the full rotation-aware retry ladder (current secret, previous
	// secret, force-refreshed current secret).
	CodeInvalidSignature Code = "invalid_signature"

	// CodeInvalidClaims indicates the claim set violates the whitelist:
	// a key outside {id, uuid, exp, iss, aud} is present, or both id and
	// uuid are missing, or exp is absent.
	CodeInvalidClaims Code = "invalid_claims"

	// Credential exchange. Raised when trading a validated token for
	// short-lived downstream credentials.

	// CodeMissingIdentity indicates a credential exchange was attempted
	// with no validated identity in the request context.
	CodeMissingIdentity Code = "missing_identity"

	// CodeInvalidJWT indicates the downstream exchange authority rejected
	// the forwarded token with 401. The token passed local validation but
	// the authority disagreed; this is not retried.
	CodeInvalidJWT Code = "invalid_jwt"

	// CodeForbidden indicates the downstream exchange authority returned
	// 403 for the forwarded token. Not retried.
	CodeForbidden Code = "forbidden"

	// CodeInvalidResponse indicates the exchange reply was malformed or
	// missing a required credential field.
	CodeInvalidResponse Code = "invalid_response"

	// CodeTimeout indicates the exchange call or a secret fetch exceeded
	// its bounded deadline. Callers may retry with backoff.
	CodeTimeout Code = "timeout"

	// CodeRequestFailed indicates a transport-level failure talking to the
	// exchange authority or the parameter store. Callers may retry with
	// backoff.
	CodeRequestFailed Code = "request_failed"

	// Configuration. These abort process initialization and are never
	// returned on a request path.

	// CodeMissingConfig indicates a required configuration value (secret
	// source, exchange base URL) is absent or unresolvable.
	CodeMissingConfig Code = "missing_config"

	// CodeInvalidConfig indicates a configuration value is present but
	// not usable (bad duration, unparseable file, out-of-range value).
	CodeInvalidConfig Code = "invalid_config"

	// CodeInternal indicates an unexpected internal failure.
	CodeInternal Code = "internal"
)

// String returns the string representation of the code.
func (c Code) String() string {
	return string(c)
}

// HTTPStatus returns the HTTP status the gate should respond with when an
// error carrying this code reaches the request boundary.
//
// The split follows the authentication state machine: 401 means no usable
// token was presented, 403 means a token was presented and rejected. Codes
// that should never reach the boundary (configuration codes) map to 500.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeMissingToken:
		return http.StatusUnauthorized
	case CodeInvalidToken, CodeTokenExpired, CodeInvalidIssuer,
		CodeInvalidAudience, CodeInvalidSignature, CodeInvalidClaims,
		CodeInvalidJWT, CodeForbidden:
		return http.StatusForbidden
	case CodeMissingIdentity:
		return http.StatusUnauthorized
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeRequestFailed, CodeInvalidResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Retryable reports whether the condition is transient from the caller's
// point of view. Validation rejections and downstream denials are final;
// transport failures and timeouts may succeed on a later attempt.
func (c Code) Retryable() bool {
	switch c {
	case CodeTimeout, CodeRequestFailed:
		return true
	default:
		return false
	}
}
