package gigauth

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrCredentialRejected is returned when login credentials are refused by the backend.
	ErrCredentialRejected = errors.New("credential rejected")
	// ErrValidationFailed is returned when a registration form fails local checks.
	ErrValidationFailed = errors.New("validation failed")
	// ErrRefreshFailed is returned when the refresh call fails; the session has been ended.
	ErrRefreshFailed = errors.New("refresh failed")
	// ErrSessionExpired is returned when the session ended because no refresh was possible.
	ErrSessionExpired = errors.New("session expired")
	// ErrAuthFailed is returned when login fails for any reason other than rejected credentials.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrRegistrationFailed is returned when the backend refuses or cannot complete a registration.
	ErrRegistrationFailed = errors.New("registration failed")
	// ErrMalformedAuthResponse is returned when a successful auth response carries no usable credential.
	ErrMalformedAuthResponse = errors.New("malformed auth response")
	// ErrStoreUnavailable is the fatal class: the persistence store could not be read or written.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrClosed is returned by operations on a closed Coordinator.
	ErrClosed = errors.New("coordinator closed")
)

// AuthError is the error type returned by [Coordinator] operations.
//
// Kind is one of the package sentinels and matches with errors.Is. Outcome is
// the transport result that caused the failure, when there was one. Fields
// holds per-field messages for [ErrValidationFailed].
type AuthError struct {
	Op      string
	Kind    error
	Outcome Outcome
	Fields  map[string]string
	Err     error
}

func (e *AuthError) Error() string {
	var b strings.Builder
	b.WriteString("gigauth: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Kind != nil {
		b.WriteString(e.Kind.Error())
	} else {
		b.WriteString("error")
	}
	if e.Outcome != nil && e.Outcome.Kind() != OutcomeSuccess {
		fmt.Fprintf(&b, " (%s)", describeOutcome(e.Outcome))
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(":")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s: %s;", k, e.Fields[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// IsNetworkUnavailable reports whether err was caused by a request that got no
// response, so a UI can show a connectivity message instead of a credential one.
func IsNetworkUnavailable(err error) bool {
	var authErr *AuthError
	if errors.As(err, &authErr) && authErr.Outcome != nil {
		return authErr.Outcome.Kind() == OutcomeNetworkUnavailable
	}
	var outErr *OutcomeError
	if errors.As(err, &outErr) && outErr.Outcome != nil {
		return outErr.Outcome.Kind() == OutcomeNetworkUnavailable
	}
	return false
}

// ValidationFields returns the per-field messages of a validation failure, or
// nil when err is not one.
func ValidationFields(err error) map[string]string {
	var authErr *AuthError
	if errors.As(err, &authErr) && errors.Is(authErr.Kind, ErrValidationFailed) {
		return authErr.Fields
	}
	return nil
}

func authErr(op string, kind error, outcome Outcome, cause error) *AuthError {
	return &AuthError{Op: op, Kind: kind, Outcome: outcome, Err: cause}
}
