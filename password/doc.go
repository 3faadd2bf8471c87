// Package password holds the registration password rules and Argon2id hashing.
//
// [Policy] is what the client checks before submitting a registration form.
// [Argon2] is what a backend (such as the bundled stub server) uses to store
// credentials.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Verify reads the cost parameters from the hash itself, so raising the
// configured cost does not invalidate stored hashes.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other gigauth package.
//   - Log plaintext passwords.
package password
