// Package stubserver is an in-process marketplace backend speaking the auth
// protocol the gigauth client expects. It issues real signed access tokens
// and opaque refresh tokens, hashes passwords with Argon2id, and exposes
// knobs to expire tokens, delay or fail refreshes, and count calls.
//
// It backs the package tests, the load generator and the development server.
package stubserver
