package crypto

import (
	"encoding/base64"
	"fmt"

	"unichat/internal/domain"
)

// EncodePublicKey returns the transport form of a public key: standard
// base64 without newlines, as stored in the record store's text column.
func EncodePublicKey(pub domain.X25519Public) string {
	return base64.StdEncoding.EncodeToString(pub[:])
}

// DecodePublicKey parses the transport form produced by EncodePublicKey.
func DecodePublicKey(s string) (domain.X25519Public, error) {
	var pub domain.X25519Public
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return pub, fmt.Errorf("decode public key: %w", err)
	}
	if len(raw) != len(pub) {
		return pub, fmt.Errorf("decode public key: got %d bytes, want %d", len(raw), len(pub))
	}
	copy(pub[:], raw)
	return pub, nil
}
