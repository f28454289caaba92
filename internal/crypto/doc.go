// Package crypto exposes the minimal primitives used by unichat.
//
// Contents
//
//   - X25519 key pair generation with RFC 7748 clamping (GenerateKeyPair)
//   - Base64 transport encoding for public keys (EncodePublicKey,
//     DecodePublicKey)
//   - Short public-key fingerprints for display/logging (Fingerprint)
//
// # Notes
//
// All functions return fixed-size array types defined in internal/domain to
// avoid accidental reallocations. Callers should treat private keys as
// sensitive and rely on memzero when practical to reduce lifetime in memory.
package crypto
