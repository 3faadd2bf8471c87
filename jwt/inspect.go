package jwt

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Inspect] when the token is not a three-part JWT.
// Opaque tokens are legal bearer credentials; callers treat this as "no claims".
var ErrNotJWT = errors.New("token is not a JWT")

// Inspect decodes the claims of token WITHOUT verifying its signature.
//
// The result is display data only: it may be forged, and must never drive an
// authorization decision. The backend re-verifies every request.
func Inspect(token string) (*AccessClaims, error) {
	token = strings.TrimSpace(token)
	if strings.Count(token, ".") != 2 {
		return nil, ErrNotJWT
	}

	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	if claims.UID == "" {
		claims.UID = claims.Subject
	}
	return claims, nil
}
