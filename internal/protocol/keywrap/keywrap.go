package keywrap

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"

	"unichat/internal/domain"
	"unichat/internal/util/memzero"
)

var (
	// ErrKeyWrap reports a failure to encrypt a session key for a recipient.
	ErrKeyWrap = errors.New("session key wrap failed")
	// ErrKeyUnwrap reports a failure to decrypt or authenticate a wrapped
	// session key. This is security-relevant: the blob was made with a
	// different key pair, or it was corrupted or tampered with.
	ErrKeyUnwrap = errors.New("session key unwrap failed")
)

var hkdfInfo = []byte("unichat/keywrap/v1")

// blob is the stored wire form of a wrapped key. JSON base64-encodes both
// fields, matching the record store's text column.
type blob struct {
	Nonce  []byte `json:"nonce"`
	Cipher []byte `json:"cipher"`
}

// Generate returns a fresh random session key suitable for AEAD use.
func Generate() (domain.SessionKey, error) {
	var k domain.SessionKey
	if _, err := rand.Read(k[:]); err != nil {
		return domain.SessionKey{}, fmt.Errorf("generate session key: %w", err)
	}
	return k, nil
}

// Wrap encrypts key so that only the holder of the private key matching
// recipientPub (or the sender) can recover it.
func Wrap(key domain.SessionKey, recipientPub domain.X25519Public, senderPriv domain.X25519Private) ([]byte, error) {
	aead, err := wrapAEAD(senderPriv, recipientPub)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyWrap, err)
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyWrap, err)
	}
	ct := aead.Seal(nil, nonce, key.Slice(), nil)
	out, err := json.Marshal(blob{Nonce: nonce, Cipher: ct})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeyWrap, err)
	}
	return out, nil
}

// Unwrap is the inverse of Wrap, using the counterparty's public key and the
// recipient's own private key.
func Unwrap(wrapped []byte, senderPub domain.X25519Public, recipientPriv domain.X25519Private) (domain.SessionKey, error) {
	var b blob
	if err := json.Unmarshal(wrapped, &b); err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: %v", ErrKeyUnwrap, err)
	}
	if len(b.Nonce) != chacha20poly1305.NonceSize {
		return domain.SessionKey{}, fmt.Errorf("%w: bad nonce length %d", ErrKeyUnwrap, len(b.Nonce))
	}
	aead, err := wrapAEAD(recipientPriv, senderPub)
	if err != nil {
		return domain.SessionKey{}, fmt.Errorf("%w: %v", ErrKeyUnwrap, err)
	}
	raw, err := aead.Open(nil, b.Nonce, b.Cipher, nil)
	if err != nil {
		return domain.SessionKey{}, ErrKeyUnwrap
	}
	if len(raw) != len(domain.SessionKey{}) {
		memzero.Zero(raw)
		return domain.SessionKey{}, fmt.Errorf("%w: bad key length %d", ErrKeyUnwrap, len(raw))
	}
	var key domain.SessionKey
	copy(key[:], raw)
	memzero.Zero(raw)
	return key, nil
}

// wrapAEAD derives the pairwise wrap key from an X25519 shared secret via
// HKDF-SHA256 and returns the AEAD sealed under it.
func wrapAEAD(priv domain.X25519Private, pub domain.X25519Public) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(priv.Slice(), pub.Slice())
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(shared)

	wk := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, nil, hkdfInfo), wk); err != nil {
		return nil, err
	}
	defer memzero.Zero(wk)
	return chacha20poly1305.New(wk)
}
