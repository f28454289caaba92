// Package realtime streams stored message rows from the relay server over a
// websocket. It only ever carries what the store already holds; decryption
// happens in the chat layer after delivery.
package realtime
