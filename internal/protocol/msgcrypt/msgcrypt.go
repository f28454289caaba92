package msgcrypt

import (
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"unichat/internal/domain"
)

var (
	// ErrEncrypt reports an AEAD seal failure. The message must not be sent.
	ErrEncrypt = errors.New("message encryption failed")
	// ErrDecrypt reports a failed authentication tag check: wrong key,
	// corrupted data, tampering, or a mismatched nonce.
	ErrDecrypt = errors.New("message decryption failed")
)

// NonceSize is the length of the per-message IV stored next to each row.
const NonceSize = chacha20poly1305.NonceSize

// Encrypt seals plaintext under key with a fresh random nonce and returns
// ciphertext and nonce. The nonce is stored alongside the ciphertext.
func Encrypt(plaintext string, key domain.SessionKey) (cipherText, nonce []byte, err error) {
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrEncrypt, err)
	}
	return aead.Seal(nil, nonce, []byte(plaintext), nil), nonce, nil
}

// Decrypt is the inverse of Encrypt. It verifies the authentication tag and
// never returns corrupted plaintext.
func Decrypt(cipherText, nonce []byte, key domain.SessionKey) (string, error) {
	if len(nonce) != NonceSize {
		return "", fmt.Errorf("%w: bad nonce length %d", ErrDecrypt, len(nonce))
	}
	aead, err := chacha20poly1305.New(key.Slice())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecrypt, err)
	}
	plain, err := aead.Open(nil, nonce, cipherText, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
