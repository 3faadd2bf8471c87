package gigauth

import (
	"time"

	"github.com/MrEthical07/gigauth/session"
)

// State is the authentication state of a [Coordinator].
type State uint8

const (
	StateAnonymous State = iota
	// StateAuthenticating is reported while a login or registration is in
	// flight and no session exists yet. It is never published to observers.
	StateAuthenticating
	StateAuthenticated
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateRefreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Reason explains a state change or a redirect to login.
type Reason string

const (
	ReasonLogin           Reason = "login"
	ReasonRegister        Reason = "register"
	ReasonRestore         Reason = "restore"
	ReasonRefreshStarted  Reason = "refresh_started"
	ReasonRefreshed       Reason = "refreshed"
	ReasonRefreshFailed   Reason = "refresh_failed"
	ReasonExpired         Reason = "expired"
	ReasonLogout          Reason = "logout"
	ReasonExternal        Reason = "external_change"
	ReasonCorrupt         Reason = "corrupt_store"
	ReasonIdentityUpdated Reason = "identity_updated"
	ReasonStoreFailure    Reason = "store_failure"
)

// StateChange is delivered to observers registered with [Coordinator.Subscribe].
// Identity is the identity after the change; zero when the new state is
// anonymous.
type StateChange struct {
	From     State
	To       State
	Reason   Reason
	Identity session.Identity
	At       time.Time
}

var transitions = map[State][]State{
	StateAnonymous:     {StateAuthenticated},
	StateAuthenticated: {StateAuthenticated, StateRefreshing, StateAnonymous},
	StateRefreshing:    {StateAuthenticated, StateAnonymous},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
