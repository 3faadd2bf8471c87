// Package jwt issues and verifies marketplace access tokens, and lets the client
// side read the claims of a token it holds without the signing key.
//
// [Manager] is used by backends (and the bundled stub backend) that own a signing
// key. [Inspect] is used by the session coordinator, which never holds a key and
// only needs the identity and expiry the backend embedded in the token.
package jwt
