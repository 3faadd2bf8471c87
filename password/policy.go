package password

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// DefaultMinLength is the registration minimum used when Policy.MinLength is zero.
const DefaultMinLength = 6

// Field names reported by [Policy.CheckRegistration].
const (
	FieldIdentifier      = "identifier"
	FieldPassword        = "password"
	FieldPasswordConfirm = "confirm_password"
)

// Policy holds the client-side registration rules. These checks exist to avoid
// a pointless round trip; the backend enforces its own rules regardless.
type Policy struct {
	MinLength int
}

// CheckRegistration validates a registration form. It returns nil when the form
// passes, otherwise a map from field name to a human-readable message. Length is
// counted in characters, not bytes.
func (p Policy) CheckRegistration(identifier, password, confirm string) map[string]string {
	minLen := p.MinLength
	if minLen <= 0 {
		minLen = DefaultMinLength
	}

	fields := map[string]string{}
	if strings.TrimSpace(identifier) == "" {
		fields[FieldIdentifier] = "email is required"
	}
	switch {
	case password == "":
		fields[FieldPassword] = "password is required"
	case utf8.RuneCountInString(password) < minLen:
		fields[FieldPassword] = "password must be at least " + strconv.Itoa(minLen) + " characters"
	}
	if password != confirm {
		fields[FieldPasswordConfirm] = "passwords do not match"
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}
