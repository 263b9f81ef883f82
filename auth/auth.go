// Package auth provides bearer-token authentication for the plan exchange service.
package auth

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrInvalidAuthHeader is returned when the authorization header is malformed.
	ErrInvalidAuthHeader = errors.New("authorization header must use Bearer scheme")

	// ErrTokenIsEmpty is returned when the bearer token is missing or blank.
	ErrTokenIsEmpty = errors.New("bearer token is empty")

	// ErrUnauthenticated is returned when the authenticator rejects a token.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Authenticator validates bearer tokens and returns user identity.
// Implementations MUST be goroutine-safe.
type Authenticator interface {
	// Authenticate validates a bearer token and returns the caller's identity.
	// The context carries the request deadline for auth backend calls.
	Authenticate(ctx context.Context, token string) (identity string, err error)
}

// MethodAuthorizer is an optional interface an Authenticator can implement
// to restrict individual exchange methods.
//
// When implemented, AuthorizeMethod runs after a successful Authenticate,
// with the identity already in ctx. A non-nil error becomes a
// PermissionDenied status.
type MethodAuthorizer interface {
	AuthorizeMethod(ctx context.Context, fullMethod string) (context.Context, error)
}

type noAuthenticator struct{}

// NoAuth returns an Authenticator that allows all requests.
// Useful for development/testing. DO NOT use in production.
func NoAuth() Authenticator {
	return &noAuthenticator{}
}

// Authenticate always returns "anonymous".
func (n *noAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return "anonymous", nil
}

const bearerPrefix = "Bearer "

// TokenFromAuthorizationHeader extracts the token of a "Bearer <token>" header.
func TokenFromAuthorizationHeader(authHeader string) (string, error) {
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthHeader
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	if token == "" {
		return "", ErrTokenIsEmpty
	}
	return token, nil
}
