package auth

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	sserr "github.com/StricklySoft/stricklysoft-auth/pkg/errors"
)

// metadataAuthorization is the incoming metadata key carrying the bearer
// token. gRPC metadata keys are lowercase.
const metadataAuthorization = "authorization"

// UnaryServerInterceptor returns a gRPC unary server interceptor applying
// the same gate semantics as [Middleware]: allow-listed methods and
// pass-through mode skip validation, a missing or non-bearer token yields
// Unauthenticated, a rejected token yields PermissionDenied with only the
// stable error code in the status message, and a validated identity is
// installed on the handler context and torn down when the handler returns.
func UnaryServerInterceptor(validator *Validator, cfg GateConfig) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if cfg.allowed(info.FullMethod) || !cfg.Enforce {
			return handler(ctx, req)
		}

		identity, err := gateGRPC(ctx, validator, info.FullMethod)
		if err != nil {
			return nil, err
		}

		ctx, release := BeginScope(ctx, identity)
		defer release()
		return handler(ctx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor with
// the same behavior as [UnaryServerInterceptor]. The stream is wrapped so
// its Context method returns the identity-bearing context.
func StreamServerInterceptor(validator *Validator, cfg GateConfig) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if cfg.allowed(info.FullMethod) || !cfg.Enforce {
			return handler(srv, ss)
		}

		identity, err := gateGRPC(ss.Context(), validator, info.FullMethod)
		if err != nil {
			return err
		}

		ctx, release := BeginScope(ss.Context(), identity)
		defer release()
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// gateGRPC extracts and validates the bearer token from incoming metadata.
// Rejections carry only the stable error code, never internal detail.
func gateGRPC(ctx context.Context, validator *Validator, method string) (*ValidatedIdentity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, string(sserr.CodeMissingToken))
	}

	values := md.Get(metadataAuthorization)
	if len(values) == 0 {
		return nil, status.Error(codes.Unauthenticated, string(sserr.CodeMissingToken))
	}
	token := ExtractBearerToken(values[0])
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, string(sserr.CodeMissingToken))
	}

	identity, err := validator.Decode(ctx, token)
	if err != nil {
		slog.WarnContext(ctx, "auth: grpc request rejected",
			"code", string(sserr.GetCode(err)),
			"method", method,
		)
		return nil, status.Error(codes.PermissionDenied, string(sserr.GetCode(err)))
	}
	return identity, nil
}

// wrappedServerStream wraps a grpc.ServerStream to override its Context
// method, so handlers observe the identity installed by the interceptor.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the identity-bearing context.
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
