// Package audit carries structured traffic and session records off the request
// path.
//
// # Components
//
//   - [Sink]: record consumer (no-op, channel, JSON lines, zerolog).
//   - [Dispatcher]: buffered async relay with drop-if-full or block-if-full delivery.
//   - [Event]: one outbound request or one session transition.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. It does NOT decide which events
// to emit; the transport client and session coordinator do.
//
// # What this package must NOT do
//
//   - Record credentials. Events carry method, path and outcome only.
//   - Import gigauth or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
