package auth

import (
	"context"
	"crypto/subtle"
	"errors"
)

// bearerAuthenticator wraps a user-provided validation function.
type bearerAuthenticator struct {
	validateFunc func(token string) (identity string, err error)
}

// BearerAuth creates an Authenticator from a validation function.
//
// Example:
//
//	a := auth.BearerAuth(func(token string) (string, error) {
//	    user, err := lookupToken(token)
//	    if err != nil {
//	        return "", err
//	    }
//	    return user.ID, nil
//	})
func BearerAuth(validateFunc func(token string) (identity string, err error)) Authenticator {
	return &bearerAuthenticator{
		validateFunc: validateFunc,
	}
}

func (b *bearerAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	return b.validateFunc(token)
}

var errUnknownToken = errors.New("unknown token")

// StaticTokens authenticates against a fixed token -> identity table.
// The table is copied; comparisons are constant-time per entry.
func StaticTokens(tokens map[string]string) Authenticator {
	entries := make([][2]string, 0, len(tokens))
	for tok, id := range tokens {
		entries = append(entries, [2]string{tok, id})
	}
	return BearerAuth(func(token string) (string, error) {
		for _, e := range entries {
			if subtle.ConstantTimeCompare([]byte(e[0]), []byte(token)) == 1 {
				return e[1], nil
			}
		}
		return "", errUnknownToken
	})
}
