package middleware

import (
	"context"
	"net/http"

	"github.com/MrEthical07/gigauth/jwt"
)

// RequireJWT returns middleware that accepts any token m can verify. It keeps
// no state, so a token stays valid until it expires.
func RequireJWT(m *jwt.Manager) func(http.Handler) http.Handler {
	return Guard(VerifierFunc(func(_ context.Context, token string) (*jwt.AccessClaims, error) {
		return m.ParseAccess(token)
	}))
}
