package flows

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/gigauth/jwt"
	"github.com/MrEthical07/gigauth/session"
	"github.com/tidwall/gjson"
)

// ErrMalformedResponse is returned when a successful auth response does not
// carry the fields a session needs.
var ErrMalformedResponse = errors.New("malformed auth response")

var (
	accessPaths  = []string{"accessToken", "access_token", "token", "data.accessToken", "data.access_token", "data.token", "tokens.access", "tokens.accessToken"}
	refreshPaths = []string{"refreshToken", "refresh_token", "data.refreshToken", "data.refresh_token", "tokens.refresh", "tokens.refreshToken"}
	expiryPaths  = []string{"expiresIn", "expires_in", "data.expiresIn", "data.expires_in"}
	userPaths    = []string{"user", "data.user"}
	profilePaths = []string{"user", "data.user", "data"}
)

// Credentials is what an auth response yields.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	Identity     session.Identity
	ExpiresAt    time.Time
}

// ParseAuthResponse extracts credentials from a login, registration or
// refresh response body. Only the access token is mandatory. When the body has
// no user object, identity and expiry are read from the access token's claims.
func ParseAuthResponse(body []byte, now time.Time) (Credentials, error) {
	if !gjson.ValidBytes(body) {
		return Credentials{}, ErrMalformedResponse
	}
	doc := gjson.ParseBytes(body)

	creds := Credentials{
		AccessToken:  firstString(doc, accessPaths),
		RefreshToken: firstString(doc, refreshPaths),
	}
	if creds.AccessToken == "" {
		return Credentials{}, ErrMalformedResponse
	}

	for _, p := range userPaths {
		if u := doc.Get(p); u.IsObject() {
			creds.Identity = identityFrom(u)
			break
		}
	}
	if secs := firstInt(doc, expiryPaths); secs > 0 {
		creds.ExpiresAt = now.Add(time.Duration(secs) * time.Second)
	}

	if claims, err := jwt.Inspect(creds.AccessToken); err == nil {
		if creds.Identity.IsZero() {
			creds.Identity = session.Identity{
				ID:    claims.UID,
				Email: claims.Email,
				Role:  claims.Role,
				Name:  claims.Name,
			}
		}
		if creds.ExpiresAt.IsZero() {
			creds.ExpiresAt = claims.Expiry()
		}
	}
	return creds, nil
}

// ParseIdentity extracts a user object from a verification or profile
// response. It returns the zero identity when the body has none.
func ParseIdentity(body []byte) session.Identity {
	if !gjson.ValidBytes(body) {
		return session.Identity{}
	}
	doc := gjson.ParseBytes(body)
	for _, p := range profilePaths {
		if u := doc.Get(p); u.IsObject() {
			if id := identityFrom(u); !id.IsZero() {
				return id
			}
		}
	}
	if doc.IsObject() {
		id := identityFrom(doc)
		if id.ID != "" || id.Email != "" {
			return id
		}
	}
	return session.Identity{}
}

func identityFrom(u gjson.Result) session.Identity {
	id := session.Identity{
		ID:    firstString(u, []string{"id", "_id", "userId", "user_id"}),
		Email: firstString(u, []string{"email"}),
		Role:  strings.ToUpper(firstString(u, []string{"role", "userType", "user_type"})),
		Name:  firstString(u, []string{"name", "fullName", "full_name", "username"}),
	}
	if id.Name == "" {
		first := u.Get("firstName").String()
		last := u.Get("lastName").String()
		id.Name = strings.TrimSpace(first + " " + last)
	}
	return id
}

func firstString(doc gjson.Result, paths []string) string {
	for _, p := range paths {
		r := doc.Get(p)
		if r.Type == gjson.String || r.Type == gjson.Number {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstInt(doc gjson.Result, paths []string) int64 {
	for _, p := range paths {
		if r := doc.Get(p); r.Type == gjson.Number {
			return r.Int()
		}
	}
	return 0
}
