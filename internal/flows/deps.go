package flows

import "context"

// Class is the transport verdict a flow reacts to.
type Class uint8

const (
	ClassSuccess Class = iota
	// ClassRejected is any 4xx other than an expiry signal.
	ClassRejected
	// ClassExpired is a 401 on a bearer-authenticated call.
	ClassExpired
	ClassNetwork
	ClassServer
)

// Call describes one backend request issued by a flow.
type Call struct {
	Method string
	Path   string
	Body   any

	// Bearer is sent as the Authorization credential on exchange calls. Empty
	// sends none. Regular calls always carry the live session credential.
	Bearer string
	// Exchange marks a credential-exchange endpoint, where a 401 means the
	// submitted credentials were rejected rather than that a session expired.
	Exchange bool
}

// Reply is the reduced transport result seen by flows.
type Reply struct {
	Class  Class
	Status int
	Body   []byte
	Err    error
	Source any
}

// Exchange performs one backend call.
type Exchange func(ctx context.Context, call Call) Reply

// Deps groups flow dependency sets. The coordinator builds this once and
// delegates each credential operation to the matching flow.
type Deps struct {
	Login    LoginDeps
	Register RegisterDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
	Verify   VerifyDeps
}
