// Package store provides file-based persistence for the local identity.
//
// The key pair is serialised as JSON and sealed into a passphrase-derived
// envelope (scrypt + ChaCha20-Poly1305) before it touches disk; the private
// key never exists in cleartext outside process memory. Writes are atomic
// (temp file + rename) and methods are concurrency-safe via internal
// locking. Files live under the user's configured home directory.
package store
