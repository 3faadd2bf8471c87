package session

import "time"

// Well-known marketplace roles carried in [Identity.Role]. The role is display
// data; the backend remains the authority for what a role may do.
const (
	RoleFreelancer = "FREELANCER"
	RoleClient     = "CLIENT"
	RoleAdmin      = "ADMIN"
)

// Identity is the minimal user projection cached next to the credentials for UI
// display.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
	Name  string `json:"name,omitempty"`
}

// IsZero reports whether no identity field is set.
func (i Identity) IsZero() bool {
	return i.ID == "" && i.Email == "" && i.Role == "" && i.Name == ""
}

// HasRole reports whether the cached role equals role.
func (i Identity) HasRole(role string) bool {
	return role != "" && i.Role == role
}

// Session is the authentication state of the current process.
//
// AccessToken is empty when anonymous. RefreshToken is optional; not every login
// flow issues one. ExpiresAt is derived from the access token when it carries an
// expiry and is never persisted.
type Session struct {
	AccessToken  string
	RefreshToken string
	Identity     Identity
	ExpiresAt    time.Time
}

// Live reports whether s carries an access credential.
func (s *Session) Live() bool {
	return s != nil && s.AccessToken != ""
}

// CanRefresh reports whether s carries a refresh credential.
func (s *Session) CanRefresh() bool {
	return s != nil && s.RefreshToken != ""
}

// Clone returns a copy of s that shares no state with it.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	return &out
}
