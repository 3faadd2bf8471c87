package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/gigauth/jwt"
)

// ErrTokenRevoked is returned by the live verifier for a well-formed token
// that is no longer in the live set.
var ErrTokenRevoked = errors.New("token revoked")

// RequireLive returns middleware that accepts a token only when m verifies it
// and live reports it as still issued.
func RequireLive(m *jwt.Manager, live func(token string) bool) func(http.Handler) http.Handler {
	return Guard(VerifierFunc(func(_ context.Context, token string) (*jwt.AccessClaims, error) {
		claims, err := m.ParseAccess(token)
		if err != nil {
			return nil, err
		}
		if live != nil && !live(token) {
			return nil, ErrTokenRevoked
		}
		return claims, nil
	}))
}
