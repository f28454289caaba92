package keywrap_test

import (
	"bytes"
	"errors"
	"testing"

	"unichat/internal/crypto"
	"unichat/internal/domain"
	"unichat/internal/protocol/keywrap"
)

// makePair returns a fresh X25519 key pair.
func makePair(t *testing.T) domain.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return kp
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	alice := makePair(t)
	bob := makePair(t)

	key, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	// Alice wraps for Bob.
	blob, err := keywrap.Wrap(key, bob.Pub, alice.Priv)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	// Bob unwraps with Alice's public key and his own private key.
	got, err := keywrap.Unwrap(blob, alice.Pub, bob.Priv)
	if err != nil {
		t.Fatalf("Unwrap: %v", err)
	}
	if !bytes.Equal(got.Slice(), key.Slice()) {
		t.Fatalf("unwrapped key differs from generated key")
	}
}

func TestWrap_SelfCopyUnwrapsWithCounterpartyPub(t *testing.T) {
	// Both copies of a room key are wrapped under the same pairwise secret,
	// so the wrapper can unwrap their own copy using the counterparty's pub.
	alice := makePair(t)
	bob := makePair(t)

	key, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	blob, err := keywrap.Wrap(key, bob.Pub, alice.Priv)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	got, err := keywrap.Unwrap(blob, bob.Pub, alice.Priv)
	if err != nil {
		t.Fatalf("Unwrap own copy: %v", err)
	}
	if !bytes.Equal(got.Slice(), key.Slice()) {
		t.Fatalf("unwrapped key differs from generated key")
	}
}

func TestUnwrap_WrongRecipientKey(t *testing.T) {
	alice := makePair(t)
	bob := makePair(t)
	eve := makePair(t)

	key, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	blob, err := keywrap.Wrap(key, bob.Pub, alice.Priv)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	if _, err := keywrap.Unwrap(blob, alice.Pub, eve.Priv); !errors.Is(err, keywrap.ErrKeyUnwrap) {
		t.Fatalf("Unwrap with wrong private key: got %v, want ErrKeyUnwrap", err)
	}
}

func TestUnwrap_TamperedBlob(t *testing.T) {
	alice := makePair(t)
	bob := makePair(t)

	key, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	blob, err := keywrap.Wrap(key, bob.Pub, alice.Priv)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}

	// Flip one bit inside the base64 payload region of the JSON blob.
	tampered := append([]byte(nil), blob...)
	tampered[len(tampered)/2] ^= 0x01
	if _, err := keywrap.Unwrap(tampered, alice.Pub, bob.Priv); !errors.Is(err, keywrap.ErrKeyUnwrap) {
		t.Fatalf("Unwrap tampered blob: got %v, want ErrKeyUnwrap", err)
	}
}

func TestUnwrap_MalformedBlob(t *testing.T) {
	alice := makePair(t)
	bob := makePair(t)

	if _, err := keywrap.Unwrap([]byte("not json"), alice.Pub, bob.Priv); !errors.Is(err, keywrap.ErrKeyUnwrap) {
		t.Fatalf("Unwrap malformed blob: got %v, want ErrKeyUnwrap", err)
	}
}

func TestGenerate_Distinct(t *testing.T) {
	a, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := keywrap.Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if bytes.Equal(a.Slice(), b.Slice()) {
		t.Fatalf("two generated session keys are identical")
	}
}
