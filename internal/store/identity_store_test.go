package store_test

import (
	"testing"

	"unichat/internal/crypto"
	"unichat/internal/domain"
	"unichat/internal/store"
)

func makeIdentity(t *testing.T) domain.Identity {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	return domain.Identity{UserID: "user-1", Keys: kp}
}

func TestIdentityFileStore_RoundTrip(t *testing.T) {
	s := store.NewIdentityFileStore(t.TempDir())
	id := makeIdentity(t)

	if err := s.SaveIdentity("Horse-Battery-Staple-99!", id); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	got, err := s.LoadIdentity("Horse-Battery-Staple-99!")
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if got.UserID != id.UserID {
		t.Fatalf("user id: got %q, want %q", got.UserID, id.UserID)
	}
	if got.Keys != id.Keys {
		t.Fatalf("loaded key pair differs from saved key pair")
	}
}

func TestIdentityFileStore_WrongPassphrase(t *testing.T) {
	s := store.NewIdentityFileStore(t.TempDir())
	if err := s.SaveIdentity("Horse-Battery-Staple-99!", makeIdentity(t)); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	if _, err := s.LoadIdentity("not-the-passphrase"); err == nil {
		t.Fatalf("LoadIdentity with wrong passphrase succeeded")
	}
}

func TestIdentityFileStore_Overwrite(t *testing.T) {
	s := store.NewIdentityFileStore(t.TempDir())
	first := makeIdentity(t)
	second := makeIdentity(t)

	if err := s.SaveIdentity("Horse-Battery-Staple-99!", first); err != nil {
		t.Fatalf("SaveIdentity: %v", err)
	}
	if err := s.SaveIdentity("Horse-Battery-Staple-99!", second); err != nil {
		t.Fatalf("SaveIdentity overwrite: %v", err)
	}
	got, err := s.LoadIdentity("Horse-Battery-Staple-99!")
	if err != nil {
		t.Fatalf("LoadIdentity: %v", err)
	}
	if got.Keys != second.Keys {
		t.Fatalf("load after overwrite returned stale identity")
	}
}
