// Package flows contains the bodies of the session coordinator's credential
// operations: login, registration, refresh, logout and verification.
//
// Each Run function accepts a typed dependency struct and returns a result with
// a failure kind, without touching session state. The coordinator owns locking,
// persistence and state transitions; a flow only talks to the backend through
// the injected [Exchange] and interprets what comes back.
//
// # Architecture boundaries
//
// Flows see the transport through [Reply], a reduced view of the client's
// outcome. The caller's original outcome travels in Reply.Source so it can be
// attached to errors without this package knowing its type.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import gigauth (to avoid import cycles).
//   - Perform I/O directly. All I/O goes through [Exchange].
package flows
