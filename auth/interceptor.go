package auth

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
)

// authenticate runs token validation and, when supported, method authorization.
func authenticate(ctx context.Context, authenticator Authenticator, fullMethod string) (context.Context, error) {
	token, err := ExtractToken(ctx)
	if err != nil {
		return ctx, err
	}

	ctx, err = ValidateToken(ctx, token, authenticator)
	if err != nil {
		return ctx, err
	}

	if az, ok := authenticator.(MethodAuthorizer); ok {
		ctx, err = az.AuthorizeMethod(ctx, fullMethod)
		if err != nil {
			return ctx, status.Errorf(codes.PermissionDenied, "%s: %v", fullMethod, err)
		}
	}
	return ctx, nil
}

// UnaryServerInterceptor creates a gRPC unary interceptor for authentication.
// If no authenticator is provided, requests pass through without auth.
func UnaryServerInterceptor(authenticator Authenticator) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		if authenticator == nil {
			return handler(ctx, req)
		}

		ctx, err := authenticate(ctx, authenticator, info.FullMethod)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor creates a gRPC stream interceptor for authentication.
// If no authenticator is provided, requests pass through without auth.
func StreamServerInterceptor(authenticator Authenticator) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if authenticator == nil {
			return handler(srv, ss)
		}

		ctx, err := authenticate(ss.Context(), authenticator, info.FullMethod)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: ss, ctx: ctx})
	}
}

// wrappedServerStream wraps grpc.ServerStream with a custom context.
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}

// bearerCredentials attaches a bearer token to every client call.
type bearerCredentials struct {
	token  string
	secure bool
}

// BearerToken returns per-RPC credentials sending "authorization: Bearer <token>".
// With requireTLS false the token may travel over plaintext connections.
func BearerToken(token string, requireTLS bool) credentials.PerRPCCredentials {
	return bearerCredentials{token: token, secure: requireTLS}
}

func (c bearerCredentials) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	return map[string]string{"authorization": bearerPrefix + c.token}, nil
}

func (c bearerCredentials) RequireTransportSecurity() bool {
	return c.secure
}
