package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error_WithoutCause(t *testing.T) {
	t.Parallel()
	err := New(CodeTokenExpired, "token expired")
	assert.Equal(t, "token_expired: token expired", err.Error())
}

func TestError_Error_WithCause(t *testing.T) {
	t.Parallel()
	cause := stderrors.New("deadline exceeded")
	err := Wrap(cause, CodeTimeout, "exchange timed out")
	assert.Equal(t, "timeout: exchange timed out: deadline exceeded", err.Error())
}

func TestError_Unwrap_ExposesCause(t *testing.T) {
	t.Parallel()
	cause := stderrors.New("connection refused")
	err := Wrap(cause, CodeRequestFailed, "exchange request failed")
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	t.Parallel()
	assert.Nil(t, Wrap(nil, CodeInternal, "should not happen"))
	assert.Nil(t, Wrapf(nil, CodeInternal, "should not happen %d", 1))
}

func TestNewf_FormatsMessage(t *testing.T) {
	t.Parallel()
	err := Newf(CodeInvalidClaims, "unexpected claim %q", "role")
	assert.Equal(t, `unexpected claim "role"`, err.Message)
}

func TestCode_HTTPStatus(t *testing.T) {
	t.Parallel()
	assert.Equal(t, http.StatusUnauthorized, CodeMissingToken.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeInvalidToken.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeTokenExpired.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeInvalidSignature.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeInvalidClaims.HTTPStatus())
	assert.Equal(t, http.StatusForbidden, CodeForbidden.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, CodeMissingIdentity.HTTPStatus())
	assert.Equal(t, http.StatusGatewayTimeout, CodeTimeout.HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, CodeRequestFailed.HTTPStatus())
	assert.Equal(t, http.StatusBadGateway, CodeInvalidResponse.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, CodeMissingConfig.HTTPStatus())
}

func TestCode_Retryable(t *testing.T) {
	t.Parallel()
	assert.True(t, CodeTimeout.Retryable())
	assert.True(t, CodeRequestFailed.Retryable())
	assert.False(t, CodeForbidden.Retryable())
	assert.False(t, CodeInvalidSignature.Retryable())
}

func TestError_PublicMessage_NeverLeaksDetail(t *testing.T) {
	t.Parallel()
	err := Wrap(stderrors.New("secret fetch from 10.0.0.5:6379 failed"),
		CodeInvalidSignature, "signature verification failed for tenant 42")
	assert.Equal(t, "authentication rejected", err.PublicMessage())
	assert.NotContains(t, err.PublicMessage(), "10.0.0.5")
}

func TestError_WithDetail_DoesNotMutateOriginal(t *testing.T) {
	t.Parallel()
	base := New(CodeForbidden, "exchange denied")
	withKey := base.WithDetail("subject_key", "abc123")

	assert.Empty(t, base.Details)
	require.Len(t, withKey.Details, 1)
	assert.Equal(t, "abc123", withKey.Details["subject_key"])
}

func TestError_Format_Verbose(t *testing.T) {
	t.Parallel()
	err := Wrap(stderrors.New("boom"), CodeInternal, "unexpected")
	out := fmt.Sprintf("%+v", err)
	assert.Contains(t, out, `Code: "internal"`)
	assert.Contains(t, out, "boom")
}

func TestAsError_TraversesChain(t *testing.T) {
	t.Parallel()
	inner := New(CodeForbidden, "denied")
	wrapped := fmt.Errorf("outer: %w", inner)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, CodeForbidden, e.Code)
}

func TestGetCode_NonStructuredError(t *testing.T) {
	t.Parallel()
	assert.Equal(t, Code(""), GetCode(stderrors.New("plain")))
	assert.Equal(t, Code(""), GetCode(nil))
}

func TestIsValidationFailure(t *testing.T) {
	t.Parallel()
	assert.True(t, IsValidationFailure(New(CodeInvalidClaims, "extra claim")))
	assert.True(t, IsValidationFailure(New(CodeTokenExpired, "expired")))
	assert.False(t, IsValidationFailure(New(CodeMissingToken, "no header")))
	assert.False(t, IsValidationFailure(New(CodeTimeout, "slow")))
}

func TestIsConfigError(t *testing.T) {
	t.Parallel()
	assert.True(t, IsConfigError(New(CodeMissingConfig, "no exchange URL")))
	assert.True(t, IsConfigError(New(CodeInvalidConfig, "bad TTL")))
	assert.False(t, IsConfigError(New(CodeInternal, "oops")))
}
