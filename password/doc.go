// Package password implements credential hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// The [Hasher] supports transparent parameter upgrades: if the stored hash was
// produced with weaker parameters, [Hasher.NeedsUpgrade] returns true so the caller
// can re-hash on the next successful sign-in.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Secret policy (minimum length)
// is enforced here; everything else (reuse history, reset flows) belongs to the Flow.
//
// # What this package must NOT do
//
//   - Store or retrieve secrets — callers supply plaintext and receive hashes.
//   - Import any other goIdentity package.
//   - Log plaintext secrets or hash parameters at runtime.
package password
