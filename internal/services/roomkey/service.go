package roomkey

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"unichat/internal/domain"
	"unichat/internal/protocol/keywrap"
)

var (
	// ErrPeerKeyMissing means the invited user has not published a public
	// key, so an encrypted room cannot be established with them.
	ErrPeerKeyMissing = errors.New("peer has not published a public key")
	// ErrSelfChat rejects a room whose two participants are the same user.
	ErrSelfChat = errors.New("cannot start a chat with yourself")
)

// Service creates encrypted private rooms.
type Service struct {
	store domain.RecordStore
	log   zerolog.Logger
}

// New returns a room establishment service.
func New(store domain.RecordStore, log zerolog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Establish creates a two-party room between self and peer and provisions
// both wrapped session key copies, peer's first. If the first insert fails
// no copy exists and both sides run the room in plaintext mode; if the
// second fails only the creator is left without a copy, so the degradation
// lands on the side that saw the error.
func (s *Service) Establish(ctx context.Context, self domain.Identity, peer domain.UserID, name string) (domain.RoomID, error) {
	if peer == self.UserID {
		return "", ErrSelfChat
	}
	peerKey, ok, err := s.store.PublicKey(ctx, peer)
	if err != nil {
		return "", fmt.Errorf("establish room with %s: %w", peer, err)
	}
	if !ok {
		return "", ErrPeerKeyMissing
	}

	room, err := s.store.CreateRoom(ctx, name, []domain.UserID{self.UserID, peer})
	if err != nil {
		return "", fmt.Errorf("establish room with %s: %w", peer, err)
	}

	key, err := keywrap.Generate()
	if err != nil {
		return "", fmt.Errorf("establish room %s: %w", room, err)
	}
	for _, member := range []domain.UserID{peer, self.UserID} {
		blob, err := keywrap.Wrap(key, peerKey.Key, self.Keys.Priv)
		if err != nil {
			return "", fmt.Errorf("establish room %s: %w", room, err)
		}
		rec := domain.WrappedSessionKey{RoomID: room, UserID: member, Blob: blob}
		if err := s.store.SaveWrappedSessionKey(ctx, rec); err != nil {
			s.log.Error().Str("room", room.String()).Str("user", member.String()).
				Err(err).Msg("wrapped key insert failed, room stays unencrypted")
			return room, fmt.Errorf("establish room %s: %w", room, err)
		}
	}
	s.log.Info().Str("room", room.String()).Str("peer", peer.String()).Msg("encrypted room established")
	return room, nil
}
