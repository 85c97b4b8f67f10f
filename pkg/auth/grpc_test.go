package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/StricklySoft/stricklysoft-auth/internal/testutil"
	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

func newGRPCValidator(t *testing.T) *Validator {
	t.Helper()
	return newTestValidator(t, newFakeSecretSource(gateTestSecret),
		ValidatorConfig{Issuer: "platform", Audience: "api"})
}

func grpcContextWithToken(token string) context.Context {
	md := metadata.Pairs(metadataAuthorization, "Bearer "+token)
	return metadata.NewIncomingContext(context.Background(), md)
}

func unaryInfo(method string) *grpc.UnaryServerInfo {
	return &grpc.UnaryServerInfo{FullMethod: method}
}

func TestUnaryServerInterceptor_MissingMetadata(t *testing.T) {
	t.Parallel()
	interceptor := UnaryServerInterceptor(newGRPCValidator(t), DefaultGateConfig())

	_, err := interceptor(context.Background(), nil, unaryInfo("/svc/Method"),
		func(ctx context.Context, req any) (any, error) { return "ok", nil })

	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestUnaryServerInterceptor_MissingAuthorization(t *testing.T) {
	t.Parallel()
	interceptor := UnaryServerInterceptor(newGRPCValidator(t), DefaultGateConfig())

	ctx := metadata.NewIncomingContext(context.Background(), metadata.MD{})
	_, err := interceptor(ctx, nil, unaryInfo("/svc/Method"),
		func(ctx context.Context, req any) (any, error) { return "ok", nil })

	require.Error(t, err)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, string(sserr.CodeMissingToken), status.Convert(err).Message())
}

func TestUnaryServerInterceptor_RejectedToken(t *testing.T) {
	t.Parallel()
	interceptor := UnaryServerInterceptor(newGRPCValidator(t), DefaultGateConfig())

	handlerCalled := false
	_, err := interceptor(grpcContextWithToken("not-a-jwt"), nil, unaryInfo("/svc/Method"),
		func(ctx context.Context, req any) (any, error) {
			handlerCalled = true
			return "ok", nil
		})

	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	assert.Equal(t, string(sserr.CodeInvalidToken), status.Convert(err).Message(),
		"status message must carry only the stable error code")
	assert.False(t, handlerCalled)
}

func TestUnaryServerInterceptor_ValidToken(t *testing.T) {
	t.Parallel()
	interceptor := UnaryServerInterceptor(newGRPCValidator(t), DefaultGateConfig())
	token := testutil.SignToken(t, gateTestSecret, testutil.StandardClaims("platform", "api"))

	var leaked context.Context
	resp, err := interceptor(grpcContextWithToken(token), nil, unaryInfo("/svc/Method"),
		func(ctx context.Context, req any) (any, error) {
			leaked = ctx
			identity, ok := IdentityFromContext(ctx)
			require.True(t, ok)
			assert.Equal(t, "user-1", identity.Claims.ID)
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, ok := IdentityFromContext(leaked)
	assert.False(t, ok, "identity must be revoked after the handler returns")
}

func TestUnaryServerInterceptor_AllowListedMethod(t *testing.T) {
	t.Parallel()
	cfg := DefaultGateConfig()
	cfg.AllowPaths = append(cfg.AllowPaths, "/grpc.health.v1.Health/Check")
	interceptor := UnaryServerInterceptor(newGRPCValidator(t), cfg)

	resp, err := interceptor(context.Background(), nil,
		unaryInfo("/grpc.health.v1.Health/Check"),
		func(ctx context.Context, req any) (any, error) { return "healthy", nil })

	require.NoError(t, err)
	assert.Equal(t, "healthy", resp)
}

func TestUnaryServerInterceptor_PassThrough(t *testing.T) {
	t.Parallel()
	cfg := DefaultGateConfig()
	cfg.Enforce = false
	interceptor := UnaryServerInterceptor(newGRPCValidator(t), cfg)

	resp, err := interceptor(context.Background(), nil, unaryInfo("/svc/Method"),
		func(ctx context.Context, req any) (any, error) {
			_, ok := IdentityFromContext(ctx)
			assert.False(t, ok, "pass-through mode must never fabricate an identity")
			return "ok", nil
		})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

// fakeServerStream is a minimal grpc.ServerStream carrying only a context.
type fakeServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *fakeServerStream) Context() context.Context { return s.ctx }

func TestStreamServerInterceptor_ValidToken(t *testing.T) {
	t.Parallel()
	interceptor := StreamServerInterceptor(newGRPCValidator(t), DefaultGateConfig())
	token := testutil.SignToken(t, gateTestSecret, testutil.StandardClaims("platform", "api"))

	stream := &fakeServerStream{ctx: grpcContextWithToken(token)}
	err := interceptor(nil, stream, &grpc.StreamServerInfo{FullMethod: "/svc/Stream"},
		func(srv any, ss grpc.ServerStream) error {
			identity, ok := IdentityFromContext(ss.Context())
			require.True(t, ok, "stream context must carry the identity")
			assert.Equal(t, "user-1", identity.Claims.ID)
			return nil
		})

	require.NoError(t, err)
}

func TestStreamServerInterceptor_RejectedToken(t *testing.T) {
	t.Parallel()
	interceptor := StreamServerInterceptor(newGRPCValidator(t), DefaultGateConfig())

	stream := &fakeServerStream{ctx: grpcContextWithToken("not-a-jwt")}
	err := interceptor(nil, stream, &grpc.StreamServerInfo{FullMethod: "/svc/Stream"},
		func(srv any, ss grpc.ServerStream) error { return nil })

	require.Error(t, err)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}
