// Package middleware exposes HTTP guards that check the bearer credential a
// gigauth client attaches. They back the development server in cmd/gigauth
// and the test backend, and suit any Go service issuing tokens with the jwt
// package.
//
// # Guards
//
//   - [Guard] checks the credential with any [Verifier].
//   - [RequireJWT] verifies the signature and expiry only, with no shared state.
//   - [RequireLive] also requires the token to be in a live set, so a
//     server-side logout or forced expiry takes effect at once.
//   - [RequireRole] restricts a route to identities with a given role.
//
// Each guard reads the Authorization header and injects the verified claims
// into the request context. A refusal is a 401 with a JSON message body, the
// shape the client reads back as AuthExpired.
package middleware
