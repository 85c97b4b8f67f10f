package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// HeaderAuthorization is the header carrying the bearer token.
const HeaderAuthorization = "Authorization"

// HeaderRequestID carries the per-request correlation identifier. The gate
// generates one when the caller did not supply it.
const HeaderRequestID = "X-Request-Id"

// bearerPrefix is the expected authorization scheme prefix, compared
// case-insensitively.
const bearerPrefix = "Bearer "

// GateConfig controls the request-boundary behavior of the authentication
// gate, for both the HTTP middleware and the gRPC interceptors.
type GateConfig struct {
	// Enforce controls whether the gate validates tokens. When false the
	// gate passes every request through untouched and installs no
	// identity; it never fabricates one. Pass-through mode exists for
	// deployments where authentication is delegated to an outer layer.
	Enforce bool `json:"enforce" yaml:"enforce" env:"ENFORCE" envDefault:"true"`

	// AllowPaths are request paths that bypass authentication entirely.
	// For the gRPC interceptors, entries are full method names
	// (e.g. "/grpc.health.v1.Health/Check"). Matching is exact.
	AllowPaths []string `json:"allow_paths" yaml:"allow_paths" env:"ALLOW_PATHS"`
}

// DefaultGateConfig returns an enforcing gate that exempts the standard
// health and liveness probe paths.
func DefaultGateConfig() GateConfig {
	return GateConfig{
		Enforce:    true,
		AllowPaths: []string{"/healthz", "/livez", "/readyz"},
	}
}

// allowed reports whether the given path bypasses authentication.
func (c GateConfig) allowed(path string) bool {
	for _, p := range c.AllowPaths {
		if p == path {
			return true
		}
	}
	return false
}

// ExtractBearerToken extracts the token from an Authorization header value
// of the form "Bearer <token>". The scheme comparison is case-insensitive.
// Returns an empty string if the header does not use the bearer scheme or
// carries no token after it.
func ExtractBearerToken(authHeader string) string {
	if len(authHeader) <= len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return authHeader[len(bearerPrefix):]
}

// Middleware returns the HTTP authentication gate. Per request:
//
//  1. Allow-listed paths pass through untouched.
//  2. A missing Authorization header, a non-bearer scheme, or an empty
//     token yields 401 with the missing_token code.
//  3. A token that fails [Validator.Decode] yields 403 carrying only the
//     stable error code and a generic message; internal detail never
//     reaches the caller.
//  4. On success the identity is installed on the request context for the
//     duration of the request, and torn down on every exit path,
//     including handler panics.
//
// Responses are JSON of the form {"error": code, "message": text}. Every
// response carries an X-Request-Id header for correlation.
func Middleware(validator *Validator, cfg GateConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(HeaderRequestID)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(HeaderRequestID, requestID)

			if cfg.allowed(r.URL.Path) || !cfg.Enforce {
				next.ServeHTTP(w, r)
				return
			}

			token := ExtractBearerToken(r.Header.Get(HeaderAuthorization))
			if token == "" {
				writeAuthError(w, sserr.New(sserr.CodeMissingToken,
					"auth: request carries no bearer token"))
				return
			}

			identity, err := validator.Decode(r.Context(), token)
			if err != nil {
				slog.WarnContext(r.Context(), "auth: request rejected",
					"code", string(sserr.GetCode(err)),
					"path", r.URL.Path,
					"request_id", requestID,
				)
				writeAuthError(w, err)
				return
			}

			ctx, release := BeginScope(r.Context(), identity)
			defer func() {
				release()
				if rec := recover(); rec != nil {
					slog.ErrorContext(r.Context(), "auth: handler panicked",
						"panic", rec,
						"path", r.URL.Path,
						"request_id", requestID,
					)
					writeAuthError(w, sserr.New(sserr.CodeInternal,
						"auth: handler panicked"))
				}
			}()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// errorResponse is the JSON body written for rejected requests. Only the
// stable code and a generic message are exposed.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeAuthError maps err onto an HTTP status and writes the JSON error
// body. Unrecognized errors are reported as internal.
func writeAuthError(w http.ResponseWriter, err error) {
	code := sserr.GetCode(err)
	if code == "" {
		code = sserr.CodeInternal
	}
	status := code.HTTPStatus()

	w.Header().Set("Content-Type", "application/json")
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}
	w.WriteHeader(status)

	body := errorResponse{Error: string(code)}
	if ssErr, ok := sserr.AsError(err); ok {
		body.Message = ssErr.PublicMessage()
	} else {
		body.Message = "internal error"
	}
	_ = json.NewEncoder(w).Encode(body)
}
