// Package roomkey establishes encrypted two-party rooms.
//
// Establishing a room creates the room row, generates its session key and
// inserts one wrapped copy per participant. Both copies are sealed under the
// same pairwise X25519 secret (with fresh nonces), which is what lets either
// participant later unwrap with their own private key plus the
// counterparty's public key. Rows are immutable afterwards; there is no
// rotation.
package roomkey
