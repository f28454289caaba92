// Package keywrap generates, wraps and unwraps per-room session keys.
//
// # Overview
//
// Each room has one 256-bit symmetric session key. Every participant holds
// their own encrypted (wrapped) copy of it in the record store; the store
// only ever sees ciphertext-of-a-key.
//
// A copy is wrapped for a specific recipient by deriving a wrap key from the
// X25519 shared secret between the sender's private key and the recipient's
// public key, then sealing the raw session key with ChaCha20-Poly1305 under
// a fresh nonce. Because the Diffie-Hellman secret is symmetric, either
// party of a two-party room can unwrap with their own private key and the
// counterparty's public key.
//
// # Errors
//
// ErrKeyWrap is returned when wrapping fails (malformed keys, low-order
// points). ErrKeyUnwrap is returned when decryption or authentication of a
// wrapped blob fails; no key material is ever returned on that path.
package keywrap
