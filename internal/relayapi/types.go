// Package relayapi holds the JSON wire types shared by the relay server and
// its HTTP client. Record rows reuse the domain structs; the types here cover
// the few payloads whose storage form is not wire-friendly.
package relayapi

// PublicKey carries a published key as base64 rather than a raw byte array.
type PublicKey struct {
	UserID string `json:"user_id"`
	Key    string `json:"key"`
}

// CreateRoom is the room creation request.
type CreateRoom struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// RoomCreated is its response.
type RoomCreated struct {
	ID string `json:"id"`
}

// Error is the body of every non-2xx response.
type Error struct {
	Error string `json:"error"`
}
