package auth

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey int

const (
	identityKey contextKey = iota
)

// WithIdentity returns a new context with the given user identity.
func WithIdentity(ctx context.Context, identity string) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext retrieves the authenticated user identity from context.
// Returns empty string if no identity is set (unauthenticated request).
func IdentityFromContext(ctx context.Context) string {
	identity, ok := ctx.Value(identityKey).(string)
	if !ok {
		return ""
	}
	return identity
}

// ExtractToken reads the bearer token from the incoming "authorization"
// metadata. A missing header yields an empty token and no error; a
// malformed one yields an Unauthenticated status.
func ExtractToken(ctx context.Context) (string, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", nil
	}

	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return "", nil
	}

	token, err := TokenFromAuthorizationHeader(authHeaders[0])
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	return token, nil
}

// ValidateToken validates a bearer token using the provided Authenticator.
// Returns context with identity set, or an Unauthenticated status.
func ValidateToken(ctx context.Context, token string, authenticator Authenticator) (context.Context, error) {
	if token == "" {
		return ctx, status.Error(codes.Unauthenticated, ErrTokenIsEmpty.Error())
	}

	identity, err := authenticator.Authenticate(ctx, token)
	if err != nil {
		return ctx, status.Errorf(codes.Unauthenticated, "%v: %v", ErrUnauthenticated, err)
	}

	return WithIdentity(ctx, identity), nil
}
