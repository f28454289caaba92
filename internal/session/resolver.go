package session

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"unichat/internal/domain"
	"unichat/internal/protocol/keywrap"
)

// ErrCounterpartyKeyMissing reports that the other participant has no
// published public key, so the wrapped session key cannot be opened.
var ErrCounterpartyKeyMissing = errors.New("counterparty public key missing")

// Resolver produces the usable session key for a room, or reports that the
// room has no E2EE material for this user.
type Resolver struct {
	store domain.RecordStore
	log   zerolog.Logger
}

// NewResolver returns a resolver reading from store.
func NewResolver(store domain.RecordStore, log zerolog.Logger) *Resolver {
	return &Resolver{store: store, log: log}
}

// Resolve returns the session key for room, unwrapped with self's private
// key. ok is false whenever the room must run unencrypted: no wrapped key
// row, more than one counterparty, missing counterparty public key, or an
// unwrap failure. Only storage/context errors are returned as errors, and
// callers are expected to degrade on those too.
func (r *Resolver) Resolve(ctx context.Context, room domain.RoomID, self domain.Identity) (domain.SessionKey, bool, error) {
	wrapped, ok, err := r.store.WrappedSessionKey(ctx, room, self.UserID)
	if err != nil {
		return domain.SessionKey{}, false, err
	}
	if !ok {
		// Room established without E2EE. Expected, not an anomaly.
		return domain.SessionKey{}, false, nil
	}

	peer, ok, err := r.counterparty(ctx, room, self.UserID)
	if err != nil {
		return domain.SessionKey{}, false, err
	}
	if !ok {
		return domain.SessionKey{}, false, nil
	}

	peerKey, ok, err := r.store.PublicKey(ctx, peer)
	if err != nil {
		return domain.SessionKey{}, false, err
	}
	if !ok {
		r.log.Warn().Str("room", room.String()).Str("peer", peer.String()).
			Err(ErrCounterpartyKeyMissing).Msg("room degrades to plaintext")
		return domain.SessionKey{}, false, nil
	}

	key, err := keywrap.Unwrap(wrapped.Blob, peerKey.Key, self.Keys.Priv)
	if err != nil {
		r.log.Warn().Str("room", room.String()).Str("peer", peer.String()).
			Err(err).Msg("session key unwrap failed, room degrades to plaintext")
		return domain.SessionKey{}, false, nil
	}
	return key, true, nil
}

// counterparty returns the one other participant of a two-party room. Rooms
// with any other membership shape fall outside the protocol's guarantees and
// resolve to no key.
func (r *Resolver) counterparty(ctx context.Context, room domain.RoomID, self domain.UserID) (domain.UserID, bool, error) {
	members, err := r.store.Participants(ctx, room)
	if err != nil {
		return "", false, err
	}
	others := members[:0:0]
	for _, m := range members {
		if m != self {
			others = append(others, m)
		}
	}
	if len(others) != 1 {
		r.log.Warn().Str("room", room.String()).Int("counterparties", len(others)).
			Msg("room is not two-party, encryption unsupported")
		return "", false, nil
	}
	return others[0], true, nil
}
