package domain

// UserID identifies an account in the record store.
type UserID string

// String returns the string form of the user id.
func (id UserID) String() string { return string(id) }

// RoomID identifies a chat room.
type RoomID string

// String returns the string form of the room id.
func (id RoomID) String() string { return string(id) }

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// KeyPair holds a user's long-term asymmetric keys. The public half is
// published to the record store; the private half never leaves the client.
type KeyPair struct {
	Pub  X25519Public
	Priv X25519Private
}

// SessionKey is the symmetric key encrypting all messages within one room.
// It lives in memory for as long as the room is open and is never persisted
// in cleartext.
type SessionKey [32]byte

// Slice returns the key as a []byte.
func (k SessionKey) Slice() []byte { return k[:] }

// Identity is the authenticated user's client-side state: who they are and
// the key pair protecting their conversations.
type Identity struct {
	UserID UserID  `json:"user_id"`
	Keys   KeyPair `json:"keys"`
}

// PublicKeyRecord is a user's published public key. At most one current key
// exists per user; rotation is not supported.
type PublicKeyRecord struct {
	UserID UserID       `json:"user_id"`
	Key    X25519Public `json:"key"`
}

// WrappedSessionKey is one participant's encrypted copy of a room's session
// key. One row exists per (room, participant); rows are immutable for the
// life of the room.
type WrappedSessionKey struct {
	RoomID RoomID `json:"room_id"`
	UserID UserID `json:"user_id"`
	Blob   []byte `json:"blob"`
}
