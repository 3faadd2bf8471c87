// Package session provides the persisted client session and the key/value backends
// it is written through to.
//
// # Storage layout
//
// A session occupies three string keys under a configurable prefix: the access
// credential, the optional refresh credential, and a JSON identity snapshot. Writes
// go through [KV.Put] as one batch so backends that support transactions (Redis,
// the file backend) never expose a half-written session.
//
// # Architecture boundaries
//
// This package owns the [Session] model, the [Store] encoding of it onto a [KV], and
// the [MemoryKV], [RedisKV] and [FileKV] backends. It does NOT talk to the API,
// interpret credentials, or run the authentication state machine; those belong to
// the Coordinator in the root package.
//
// # What this package must NOT do
//
//   - Import gigauth, jwt, or internal/flows (no upward imports).
//   - Make authorization decisions from [Identity]; it is a display cache.
//   - Log credential values.
package session
