package msgcrypt_test

import (
	"bytes"
	"errors"
	"testing"

	"unichat/internal/domain"
	"unichat/internal/protocol/keywrap"
	"unichat/internal/protocol/msgcrypt"
)

func makeKey(t *testing.T) domain.SessionKey {
	t.Helper()
	key, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	return key
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := makeKey(t)
	for _, plaintext := range []string{"", "hi", "Taco Tuesday at the quad?", "日本語もOK"} {
		ct, nonce, err := msgcrypt.Encrypt(plaintext, key)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		got, err := msgcrypt.Decrypt(ct, nonce, key)
		if err != nil {
			t.Fatalf("Decrypt(%q): %v", plaintext, err)
		}
		if got != plaintext {
			t.Fatalf("round trip: got %q, want %q", got, plaintext)
		}
	}
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := makeKey(t)
	ct1, n1, err := msgcrypt.Encrypt("same message", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct2, n2, err := msgcrypt.Encrypt("same message", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if bytes.Equal(n1, n2) {
		t.Fatalf("nonce reused across two encryptions under the same key")
	}
	if bytes.Equal(ct1, ct2) {
		t.Fatalf("identical ciphertexts for two encryptions of the same plaintext")
	}
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key := makeKey(t)
	ct, nonce, err := msgcrypt.Encrypt("do not touch", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	for i := range ct {
		tampered := append([]byte(nil), ct...)
		tampered[i] ^= 0x01
		if _, err := msgcrypt.Decrypt(tampered, nonce, key); !errors.Is(err, msgcrypt.ErrDecrypt) {
			t.Fatalf("bit flip in ciphertext byte %d: got %v, want ErrDecrypt", i, err)
		}
	}
	for i := range nonce {
		tampered := append([]byte(nil), nonce...)
		tampered[i] ^= 0x01
		if _, err := msgcrypt.Decrypt(ct, tampered, key); !errors.Is(err, msgcrypt.ErrDecrypt) {
			t.Fatalf("bit flip in nonce byte %d: got %v, want ErrDecrypt", i, err)
		}
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := makeKey(t)
	other := makeKey(t)

	ct, nonce, err := msgcrypt.Encrypt("secret", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := msgcrypt.Decrypt(ct, nonce, other); !errors.Is(err, msgcrypt.ErrDecrypt) {
		t.Fatalf("Decrypt with wrong key: got %v, want ErrDecrypt", err)
	}
}

func TestDecrypt_BadNonceLength(t *testing.T) {
	key := makeKey(t)
	ct, _, err := msgcrypt.Encrypt("secret", key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := msgcrypt.Decrypt(ct, []byte{1, 2, 3}, key); !errors.Is(err, msgcrypt.ErrDecrypt) {
		t.Fatalf("Decrypt with short nonce: got %v, want ErrDecrypt", err)
	}
}
