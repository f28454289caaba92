// Package msgcrypt encrypts and decrypts individual message bodies under a
// room's session key.
//
// Every call to Encrypt draws a fresh random nonce; nonces are never reused
// under the same key and travel alongside the ciphertext (they are not
// secret). Decrypt verifies the ChaCha20-Poly1305 authentication tag and
// refuses to return plaintext on any mismatch.
//
// # Errors
//
// ErrEncrypt is fatal for the send attempt that hit it; the caller must not
// fall back to sending plaintext. ErrDecrypt is a per-message condition:
// callers render a placeholder and keep going.
package msgcrypt
