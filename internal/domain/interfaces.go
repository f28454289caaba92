package domain

import "context"

// RecordStore is the hosted database the app runs against. The core only
// ever reads and writes opaque rows; plaintext never reaches it for rooms
// with an established session key.
type RecordStore interface {
	// WrappedSessionKey point-looks-up the caller's encrypted session key
	// copy for a room. ok is false when the room has no E2EE material for
	// this user; that is not an error.
	WrappedSessionKey(ctx context.Context, room RoomID, user UserID) (WrappedSessionKey, bool, error)
	// SaveWrappedSessionKey inserts a participant's wrapped copy at room
	// establishment. Rows are never updated afterwards.
	SaveWrappedSessionKey(ctx context.Context, key WrappedSessionKey) error

	// PublicKey fetches a user's current published public key.
	PublicKey(ctx context.Context, user UserID) (PublicKeyRecord, bool, error)
	// PublishPublicKey upserts the caller's public key. At most one current
	// key exists per user.
	PublishPublicKey(ctx context.Context, rec PublicKeyRecord) error

	// Profile fetches the public profile for a user.
	Profile(ctx context.Context, user UserID) (Profile, bool, error)

	// Participants lists the members of a room.
	Participants(ctx context.Context, room RoomID) ([]UserID, error)
	// Rooms lists the rooms a user belongs to, newest activity first.
	Rooms(ctx context.Context, user UserID) ([]Room, error)
	// CreateRoom creates a room with the given members and returns its id.
	CreateRoom(ctx context.Context, name string, members []UserID) (RoomID, error)

	// Messages returns a room's rows in ascending creation order.
	Messages(ctx context.Context, room RoomID) ([]MessageRecord, error)
	// AppendMessage inserts a row and returns it with server-assigned id and
	// timestamp filled in.
	AppendMessage(ctx context.Context, rec MessageRecord) (MessageRecord, error)
}

// Subscription is a live relay feed; Close stops delivery.
type Subscription interface {
	Close() error
}

// Relay delivers message-insert events with at-least-once, low-latency
// semantics. Same-room events arrive in insertion order; nothing is
// guaranteed across rooms. The core subscribes but does not implement the
// transport.
type Relay interface {
	Subscribe(ctx context.Context, fn func(MessageRecord)) (Subscription, error)
}

// IdentityStore persists the user's long-term identity under a passphrase.
type IdentityStore interface {
	SaveIdentity(passphrase string, id Identity) error
	LoadIdentity(passphrase string) (Identity, error)
}
