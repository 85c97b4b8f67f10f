package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/StricklySoft/stricklysoft-auth/internal/testutil"
	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

func TestClaimsFromMap_AcceptsWhitelistedClaims(t *testing.T) {
	t.Parallel()
	exp := time.Now().Add(time.Hour)
	claims, err := claimsFromMap(jwt.MapClaims{
		"id":   "user-1",
		"uuid": "abc-123",
		"exp":  float64(exp.Unix()),
		"iss":  "platform",
		"aud":  "api",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.ID)
	assert.Equal(t, "abc-123", claims.UUID)
	assert.Equal(t, "platform", claims.Issuer)
	assert.Equal(t, "api", claims.Audience)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestClaimsFromMap_RejectsUnexpectedClaim(t *testing.T) {
	t.Parallel()
	// "sub" is a registered JWT claim but is still outside the whitelist.
	for _, extra := range []string{"sub", "email", "role", "name"} {
		// exp is float64 the way json decoding produces it; MapClaims
		// does not accept integer seconds.
		mc := jwt.MapClaims{
			"id":  "user-1",
			"exp": float64(time.Now().Add(time.Hour).Unix()),
		}
		mc[extra] = "anything"
		_, err := claimsFromMap(mc)
		testutil.RequireErrorCode(t, err, sserr.CodeInvalidClaims,
			"claim %q should be rejected", extra)
	}
}

func TestClaimsFromMap_RequiresIDOrUUID(t *testing.T) {
	t.Parallel()
	_, err := claimsFromMap(jwt.MapClaims{
		"exp": float64(time.Now().Add(time.Hour).Unix()),
		"iss": "platform",
	})
	testutil.RequireErrorCode(t, err, sserr.CodeInvalidClaims)
}

func TestClaimsFromMap_UUIDAloneSuffices(t *testing.T) {
	t.Parallel()
	claims, err := claimsFromMap(jwt.MapClaims{
		"uuid": "abc-123",
		"exp":  float64(time.Now().Add(time.Hour).Unix()),
	})
	require.NoError(t, err)
	assert.Equal(t, "abc-123", claims.Subject())
}

func TestClaimsFromMap_MissingExp(t *testing.T) {
	t.Parallel()
	_, err := claimsFromMap(jwt.MapClaims{"id": "user-1"})
	testutil.RequireErrorCode(t, err, sserr.CodeInvalidClaims)
}

func TestClaimsFromMap_UnusableExp(t *testing.T) {
	t.Parallel()
	_, err := claimsFromMap(jwt.MapClaims{"id": "user-1", "exp": "tomorrow"})
	testutil.RequireErrorCode(t, err, sserr.CodeInvalidClaims)
}

func TestClaims_Subject_PrefersID(t *testing.T) {
	t.Parallel()
	c := Claims{ID: "user-1", UUID: "abc-123"}
	assert.Equal(t, "user-1", c.Subject())
}

func TestValidatedIdentity_SubjectKey_Stable(t *testing.T) {
	t.Parallel()
	a := &ValidatedIdentity{Claims: Claims{ID: "user-1", UUID: "abc"}}
	b := &ValidatedIdentity{Claims: Claims{ID: "user-1", UUID: "abc"}}
	c := &ValidatedIdentity{Claims: Claims{ID: "user-2", UUID: "abc"}}

	assert.Equal(t, a.SubjectKey(), b.SubjectKey())
	assert.NotEqual(t, a.SubjectKey(), c.SubjectKey())
	assert.NotContains(t, a.SubjectKey(), "user-1",
		"subject key must not expose raw claim values")
}
