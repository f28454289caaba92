package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/curve25519"

	"unichat/internal/domain"
)

// GenerateKeyPair returns a fresh Curve25519 key pair.
// The private key is clamped per RFC 7748.
func GenerateKeyPair() (domain.KeyPair, error) {
	var priv domain.X25519Private
	if _, err := rand.Read(priv[:]); err != nil {
		return domain.KeyPair{}, err
	}
	clamp(&priv)
	pb, err := curve25519.X25519(priv.Slice(), curve25519.Basepoint)
	if err != nil {
		return domain.KeyPair{}, err
	}
	var pub domain.X25519Public
	copy(pub[:], pb)
	return domain.KeyPair{Pub: pub, Priv: priv}, nil
}

// Fingerprint returns a short fingerprint of the public key.
func Fingerprint(pub domain.X25519Public) string {
	sum := sha256.Sum256(pub[:])
	return hex.EncodeToString(sum[:10])
}

func clamp(k *domain.X25519Private) {
	kb := k[:]
	kb[0] &= 248
	kb[31] &= 127
	kb[31] |= 64
}
