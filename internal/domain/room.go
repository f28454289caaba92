package domain

import "time"

// Room is a two-party chat room summary as listed for a user. LastMessage is
// the stored content of the newest row; for encrypted rooms it is ciphertext
// and callers must redact it rather than display it.
type Room struct {
	ID            RoomID    `json:"id"`
	Name          string    `json:"name"`
	LastMessage   string    `json:"last_message,omitempty"`
	LastMessageIV string    `json:"last_message_iv,omitempty"`
	LastMessageAt time.Time `json:"last_message_at,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
