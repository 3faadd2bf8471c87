// Package internal holds packages that are private to gigauth.
//
// # Sub-packages
//
//   - audit: async dispatch of traffic and transition records (Dispatcher + Sink implementations)
//   - flows: pure-function orchestrators for login, registration, refresh, verify and logout
//   - stubserver: an in-process marketplace backend for tests, examples and local development
//
// # What this package must NOT do
//
//   - Export types that appear in the public gigauth API.
//   - Be imported by any package outside the gigauth module.
package internal
