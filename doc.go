// Package gigauth is the HTTP API client and session lifecycle layer of a
// freelance-marketplace frontend.
//
// Two components cooperate. [Client] sends every outbound request, attaches the
// bearer credential and classifies each result into an [Outcome]. [Coordinator]
// owns the authentication state machine, persists credentials through a
// [session.Store], and reacts when the Client reports an expired credential by
// running at most one refresh at a time.
//
// Both are assembled by [Builder.Build] and safe for concurrent use.
//
// # Architecture boundaries
//
// gigauth is the public surface. Flow bodies, log dispatch and response parsing
// live under internal/ and are never exported. Persistence backends live in the
// session package.
//
// # What this package must NOT do
//
//   - Make authorization decisions from the cached identity. It is display data.
//   - Retry requests, except the single replay after a refresh.
//   - Log credentials.
package gigauth
