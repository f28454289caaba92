package domain

import (
	"encoding/base64"
	"fmt"
	"time"
)

// MessageRecord is the raw message row as stored and relayed. Content holds
// base64 ciphertext when IV is set, plaintext otherwise. The store never sees
// anything else.
type MessageRecord struct {
	ID        string    `json:"id"`
	RoomID    RoomID    `json:"room_id"`
	SenderID  UserID    `json:"user_id"`
	Content   string    `json:"content"`
	IV        string    `json:"iv,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Body is a message payload, decided once when a raw record crosses the
// boundary: either an authenticated ciphertext or legacy plaintext.
type Body interface {
	body()
}

// Encrypted is an AEAD ciphertext plus the nonce it was sealed with.
type Encrypted struct {
	Cipher []byte
	Nonce  []byte
}

func (Encrypted) body() {}

// Plain is an unencrypted payload, sent in a room with no session key.
type Plain struct {
	Text string
}

func (Plain) body() {}

// DecodeBody classifies a raw content/iv pair. An empty iv means the message
// was never encrypted and the content is rendered as-is.
func DecodeBody(content, iv string) (Body, error) {
	if iv == "" {
		return Plain{Text: content}, nil
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return nil, fmt.Errorf("decode iv: %w", err)
	}
	cipher, err := base64.StdEncoding.DecodeString(content)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	return Encrypted{Cipher: cipher, Nonce: nonce}, nil
}

// Message is a validated record with its payload classified.
type Message struct {
	ID        string
	RoomID    RoomID
	SenderID  UserID
	Body      Body
	CreatedAt time.Time
}

// DecodeMessage validates a raw row into a typed Message.
func DecodeMessage(rec MessageRecord) (Message, error) {
	if rec.ID == "" {
		return Message{}, fmt.Errorf("message without id in room %s", rec.RoomID)
	}
	body, err := DecodeBody(rec.Content, rec.IV)
	if err != nil {
		return Message{}, fmt.Errorf("message %s: %w", rec.ID, err)
	}
	return Message{
		ID:        rec.ID,
		RoomID:    rec.RoomID,
		SenderID:  rec.SenderID,
		Body:      body,
		CreatedAt: rec.CreatedAt,
	}, nil
}

// Profile is the public slice of an account, as published to other users.
type Profile struct {
	UserID      UserID `json:"id"`
	DisplayName string `json:"full_name"`
	Handle      string `json:"handle"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// PlainMessage is the view-model produced for an open room: a message with
// its plaintext resolved (or a placeholder) and the sender profile attached.
// It is never written back to the store.
type PlainMessage struct {
	ID        string
	RoomID    RoomID
	SenderID  UserID
	Text      string
	Encrypted bool
	CreatedAt time.Time
	Sender    *Profile
}
