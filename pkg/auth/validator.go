package auth

import (
	"context"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
	"github.com/StricklySoft/stricklysoft-auth/pkg/secrets"
)

// tracerName is the OpenTelemetry instrumentation scope name for auth spans.
const tracerName = "github.com/StricklySoft/stricklysoft-auth/pkg/auth"

// maxTokenSize is the maximum accepted size for a token string (8 KB).
// Tokens larger than this are rejected to prevent resource exhaustion.
const maxTokenSize = 8192

// SecretSource provides the signing secrets the validator verifies against.
// It is satisfied by [*secrets.Store] and by fakes in tests.
type SecretSource interface {
	// Current returns the current signing secret, refreshing it lazily.
	Current(ctx context.Context) (secrets.SigningSecret, error)

	// Previous returns the rotated-out secret while its grace window is
	// open, and false once it has been evicted.
	Previous() (secrets.SigningSecret, bool)

	// ForceRefresh discards TTL state and fetches the secret immediately.
	ForceRefresh(ctx context.Context) (secrets.SigningSecret, error)
}

// Compile-time check that *secrets.Store satisfies SecretSource.
var _ SecretSource = (*secrets.Store)(nil)

// ValidatorConfig holds the claim expectations for [Validator]. Both fields
// are optional; an empty value disables the corresponding check.
type ValidatorConfig struct {
	// Issuer is the expected "iss" claim. When set, tokens with any other
	// issuer (including none) are rejected.
	Issuer string `json:"issuer,omitempty" yaml:"issuer" env:"ISSUER"`

	// Audience is the expected "aud" claim. When set, tokens with any
	// other audience (including none) are rejected.
	Audience string `json:"audience,omitempty" yaml:"audience" env:"AUDIENCE"`
}

// Validator verifies HS256 bearer tokens against the signing secrets held
// by a [SecretSource], tolerating in-flight secret rotation.
//
// Validator is safe for concurrent use by multiple goroutines. Validation
// of one token never mutates shared state beyond a possible secret refresh,
// so concurrent validations of different tokens do not interleave.
type Validator struct {
	secrets  SecretSource
	issuer   string
	audience string
	tracer   trace.Tracer

	// now is the clock, replaceable in tests.
	now func() time.Time
}

// NewValidator creates a Validator backed by the given secret source.
func NewValidator(source SecretSource, cfg ValidatorConfig) (*Validator, error) {
	if source == nil {
		return nil, sserr.New(sserr.CodeMissingConfig,
			"auth: validator requires a secret source")
	}
	return &Validator{
		secrets:  source,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}, nil
}

// Decode verifies the given raw token and returns the identity it
// represents. The checks run in a fixed order, each failing closed:
//
//  1. Structural: the token must be non-empty, within size bounds, and
//     consist of three dot-separated segments. Failure: invalid_token.
//  2. Expiry: the exp claim must be present, usable, and in the future.
//     An expired token is reported as token_expired even when its
//     signature would not verify. Failure: token_expired or
//     invalid_claims.
//  3. Signature: verified against the current secret, then the previous
//     secret (rotation grace window), then a force-refreshed current
//     secret (out-of-band rotation). Only after all three fail:
//     invalid_signature. Only HS256 is accepted.
//  4. Issuer and audience equality when configured. Failure:
//     invalid_issuer / invalid_audience.
//  5. Claim whitelist: no keys beyond {id, uuid, exp, iss, aud}, and at
//     least one of id/uuid. Failure: invalid_claims.
func (v *Validator) Decode(ctx context.Context, raw string) (*ValidatedIdentity, error) {
	ctx, span := v.tracer.Start(ctx, "auth.Decode")
	defer span.End()

	mc, err := v.parseUnverified(raw)
	if err != nil {
		return nil, failSpan(span, err)
	}

	// Expiry is checked before the signature ladder so an expired token
	// never triggers secret refreshes, and so expiry wins over any
	// signature problem in the reported code.
	exp, expErr := mc.GetExpirationTime()
	if expErr != nil || exp == nil {
		return nil, failSpan(span, sserr.New(sserr.CodeInvalidClaims,
			"auth: token is missing a usable exp claim"))
	}
	if !exp.Time.After(v.now()) {
		return nil, failSpan(span, sserr.New(sserr.CodeTokenExpired,
			"auth: token has expired"))
	}

	if err := v.verifySignature(ctx, span, raw); err != nil {
		return nil, failSpan(span, err)
	}

	if v.issuer != "" {
		if iss, _ := mc["iss"].(string); iss != v.issuer {
			return nil, failSpan(span, sserr.New(sserr.CodeInvalidIssuer,
				"auth: token issuer does not match the expected issuer"))
		}
	}
	if v.audience != "" {
		if aud, _ := mc["aud"].(string); aud != v.audience {
			return nil, failSpan(span, sserr.New(sserr.CodeInvalidAudience,
				"auth: token audience does not match the expected audience"))
		}
	}

	claims, err := claimsFromMap(mc)
	if err != nil {
		return nil, failSpan(span, err)
	}

	identity := &ValidatedIdentity{
		RawToken:    raw,
		Claims:      claims,
		ValidatedAt: v.now(),
	}
	span.SetAttributes(attribute.String("auth.subject", claims.Subject()))
	return identity, nil
}

// parseUnverified runs the structural checks and extracts the claim map
// without verifying the signature.
func (v *Validator) parseUnverified(raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, sserr.New(sserr.CodeInvalidToken, "auth: token must not be empty")
	}
	if len(raw) > maxTokenSize {
		return nil, sserr.New(sserr.CodeInvalidToken, "auth: token exceeds maximum size")
	}
	if strings.Count(raw, ".") != 2 {
		return nil, sserr.New(sserr.CodeInvalidToken,
			"auth: token is not three dot-separated segments")
	}

	parser := jwt.NewParser()
	unverified, _, err := parser.ParseUnverified(raw, jwt.MapClaims{})
	if err != nil || unverified == nil {
		return nil, sserr.New(sserr.CodeInvalidToken, "auth: token is malformed")
	}

	// alg:none is never acceptable, regardless of what the ladder would
	// later reject.
	if alg, _ := unverified.Header["alg"].(string); strings.EqualFold(alg, "none") {
		return nil, sserr.New(sserr.CodeInvalidToken,
			"auth: algorithm 'none' is not permitted")
	}

	mc, ok := unverified.Claims.(jwt.MapClaims)
	if !ok {
		return nil, sserr.New(sserr.CodeInvalidToken, "auth: unable to extract claims")
	}
	return mc, nil
}

// verifySignature runs the rotation-aware retry ladder: current secret,
// then previous secret, then a force-refreshed current secret. The ladder
// lets a rotation in the backing store propagate without failing any
// request, while never skipping a signature check.
func (v *Validator) verifySignature(ctx context.Context, span trace.Span, raw string) error {
	current, err := v.secrets.Current(ctx)
	if err != nil {
		return sserr.Wrap(err, sserr.CodeRequestFailed,
			"auth: unable to obtain the current signing secret")
	}
	if checkHS256(raw, current.Value) == nil {
		span.SetAttributes(attribute.String("auth.secret_slot", "current"))
		return nil
	}

	if previous, ok := v.secrets.Previous(); ok {
		if checkHS256(raw, previous.Value) == nil {
			span.SetAttributes(attribute.String("auth.secret_slot", "previous"))
			return nil
		}
	}

	refreshed, err := v.secrets.ForceRefresh(ctx)
	if err == nil && refreshed.Value != current.Value {
		if checkHS256(raw, refreshed.Value) == nil {
			span.SetAttributes(attribute.String("auth.secret_slot", "refreshed"))
			return nil
		}
	}

	return sserr.New(sserr.CodeInvalidSignature,
		"auth: token signature does not verify against any known secret")
}

// checkHS256 verifies the token signature against a single secret. Only
// HS256 is accepted; jwt.WithValidMethods prevents algorithm confusion
// attacks where an attacker presents a token signed with another scheme.
// Claim validation is disabled here because expiry, issuer, audience, and
// the whitelist are enforced explicitly by Decode in its documented order.
func checkHS256(raw string, secret secrets.Secret) error {
	_, err := jwt.Parse(raw, func(token *jwt.Token) (any, error) {
		return []byte(secret.Value()), nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	return err
}

// failSpan records err on the span, sets the span status to Error, and
// returns err for propagation.
func failSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
