// Package auth implements bearer-token validation and per-request identity
// propagation for services running behind the platform API gateway.
//
// Validation is fail-closed at every step: a token is accepted only when its
// signature verifies against a known signing secret, its expiry is in the
// future, its issuer and audience match the configured expectations, and its
// claim set contains nothing beyond the recognized keys. Ambiguous input is
// always rejected, never defaulted to allow.
//
// Identity Propagation:
//
// A successfully validated token produces a [ValidatedIdentity] that is
// scoped to exactly one in-flight request. The HTTP middleware and gRPC
// interceptors in this package install the identity on the request context
// and tear it down unconditionally when the request completes, so two
// concurrent requests can never observe each other's identity.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// allowedClaimKeys is the exhaustive set of claim keys a token may carry.
// Any key outside this set makes the whole claim set invalid. The list is
// deliberately strict: even registered claims such as "sub" or "email" are
// rejected, so an issuer cannot smuggle unvetted data through the trust
// boundary. Relaxing it is a security policy change, not a bug fix.
var allowedClaimKeys = map[string]struct{}{
	"id":   {},
	"uuid": {},
	"exp":  {},
	"iss":  {},
	"aud":  {},
}

// Claims is the validated claim set of an accepted token. At least one of
// ID and UUID is non-empty, and ExpiresAt is in the future at validation
// time.
type Claims struct {
	// ID is the caller's account identifier, if present.
	ID string

	// UUID is the caller's stable unique identifier, if present.
	UUID string

	// ExpiresAt is the token expiry instant from the "exp" claim.
	ExpiresAt time.Time

	// Issuer is the "iss" claim value, empty when the token carries none.
	Issuer string

	// Audience is the "aud" claim value, empty when the token carries none.
	Audience string
}

// Subject returns the preferred subject identifier: ID when set, otherwise
// UUID. At least one is always non-empty on validated claims.
func (c Claims) Subject() string {
	if c.ID != "" {
		return c.ID
	}
	return c.UUID
}

// claimsFromMap converts a verified claim map into Claims, enforcing the
// claim whitelist and the identity requirement. The expiry must already
// have been checked by the caller; it is re-read here only to populate
// ExpiresAt.
func claimsFromMap(mc jwt.MapClaims) (Claims, error) {
	for key := range mc {
		if _, ok := allowedClaimKeys[key]; !ok {
			return Claims{}, sserr.Newf(sserr.CodeInvalidClaims,
				"auth: token carries unexpected claim %q", key)
		}
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return Claims{}, sserr.New(sserr.CodeInvalidClaims,
			"auth: token is missing a usable exp claim")
	}

	claims := Claims{ExpiresAt: exp.Time}
	claims.ID, _ = mc["id"].(string)
	claims.UUID, _ = mc["uuid"].(string)
	claims.Issuer, _ = mc["iss"].(string)
	claims.Audience, _ = mc["aud"].(string)

	if claims.ID == "" && claims.UUID == "" {
		return Claims{}, sserr.New(sserr.CodeInvalidClaims,
			"auth: token carries neither an id nor a uuid claim")
	}

	return claims, nil
}

// ValidatedIdentity is the result of a successful token validation. It is
// immutable and owned by the request that produced it; it is never shared
// across requests or cached beyond the token's expiry.
type ValidatedIdentity struct {
	// RawToken is the exact token string that validated. Downstream
	// credential exchange forwards it for independent re-verification.
	RawToken string

	// Claims is the validated claim set.
	Claims Claims

	// ValidatedAt is the instant validation succeeded.
	ValidatedAt time.Time
}

// SubjectKey returns a stable, non-reversible key identifying this
// identity, suitable for keying per-identity caches. Two identities with
// the same id and uuid claims always produce the same key.
func (v *ValidatedIdentity) SubjectKey() string {
	h := sha256.Sum256([]byte(v.Claims.ID + "|" + v.Claims.UUID))
	return hex.EncodeToString(h[:])
}

// DisplayName returns a human-readable label for logs and identity
// summaries. It is the subject identifier, never anything derived from
// unvalidated input.
func (v *ValidatedIdentity) DisplayName() string {
	return v.Claims.Subject()
}
