package account

import (
	"context"
	"fmt"
	"unicode"

	"unichat/internal/crypto"
	"unichat/internal/domain"
)

const (
	// minPassphraseLength defines the minimum number of characters required for a passphrase.
	minPassphraseLength = 12
)

var (
	// ErrWeakPassphrase is returned when the passphrase fails the strength policy.
	ErrWeakPassphrase = fmt.Errorf(
		"passphrase is too weak (must be at least %d characters and include upper, lower, "+
			"number, and symbol)",
		minPassphraseLength,
	)
)

// Service manages the local identity using a backing store and publishes the
// public key to the record store so counterparties can wrap session keys for
// this user.
type Service struct {
	ids   domain.IdentityStore
	store domain.RecordStore
}

// New returns an account service backed by the given stores.
func New(ids domain.IdentityStore, store domain.RecordStore) *Service {
	return &Service{ids: ids, store: store}
}

// Setup creates the key pair for user, saves it encrypted with the
// passphrase, and publishes the public key. Runs once at account setup.
func (s *Service) Setup(ctx context.Context, passphrase string, user domain.UserID) (domain.Identity, error) {
	if user == "" {
		return domain.Identity{}, fmt.Errorf("user id required")
	}
	if !isSecurePassphrase(passphrase) {
		return domain.Identity{}, ErrWeakPassphrase
	}
	keys, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.Identity{}, err
	}
	id := domain.Identity{UserID: user, Keys: keys}
	if err := s.ids.SaveIdentity(passphrase, id); err != nil {
		return domain.Identity{}, err
	}
	if err := s.publish(ctx, id); err != nil {
		return domain.Identity{}, err
	}
	return id, nil
}

// Load decrypts and returns the local identity.
func (s *Service) Load(passphrase string) (domain.Identity, error) {
	return s.ids.LoadIdentity(passphrase)
}

// Publish re-publishes the current public key, for a user whose profile row
// lost it or who moved record stores.
func (s *Service) Publish(ctx context.Context, passphrase string) error {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return err
	}
	return s.publish(ctx, id)
}

// Fingerprint returns a short fingerprint of the local public key.
func (s *Service) Fingerprint(passphrase string) (string, error) {
	id, err := s.ids.LoadIdentity(passphrase)
	if err != nil {
		return "", err
	}
	return crypto.Fingerprint(id.Keys.Pub), nil
}

func (s *Service) publish(ctx context.Context, id domain.Identity) error {
	rec := domain.PublicKeyRecord{UserID: id.UserID, Key: id.Keys.Pub}
	if err := s.store.PublishPublicKey(ctx, rec); err != nil {
		return fmt.Errorf("publish public key for %s: %w", id.UserID, err)
	}
	return nil
}

// isSecurePassphrase enforces a basic strength policy.
func isSecurePassphrase(passphrase string) bool {
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	if len(passphrase) < minPassphraseLength {
		return false
	}
	for _, r := range passphrase {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r), unicode.IsSymbol(r):
			hasSymbol = true
		}
	}
	return hasUpper && hasLower && hasDigit && hasSymbol
}
