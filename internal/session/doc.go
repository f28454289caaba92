// Package session resolves the symmetric key for a conversation.
//
// The resolver fetches the caller's wrapped session key copy for a room,
// determines the single counterparty of the two-party room, fetches their
// published public key and unwraps. Every failure on that path degrades the
// room to no-key (plaintext) mode instead of surfacing an error to the user;
// anomalies are logged for operator visibility.
//
// Resolved keys live in a KeyCache owned by the chat controller, keyed by
// room id and invalidated when the room is closed or switched.
package session
