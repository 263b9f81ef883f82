package substrait

import (
	"context"

	"github.com/hugr-lab/substrait-go/auth"
)

// Authenticator validates bearer tokens and returns user identity.
// This is re-exported from the auth package for convenience.
type Authenticator = auth.Authenticator

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	a := substrait.BearerAuth(func(token string) (string, error) {
//	    if token != secret {
//	        return "", substrait.ErrUnauthorized
//	    }
//	    return "ops", nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return auth.BearerAuth(validateFunc)
}

// NoAuth returns an Authenticator that allows all requests without validation.
// Useful for development and testing. DO NOT use in production.
func NoAuth() Authenticator {
	return auth.NoAuth()
}

// IdentityFromContext retrieves the authenticated user identity from context.
// Returns empty string if no identity is set (unauthenticated request).
func IdentityFromContext(ctx context.Context) string {
	return auth.IdentityFromContext(ctx)
}
