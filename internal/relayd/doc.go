// Package relayd implements the relay server: a REST API over the record
// store plus a websocket stream of stored message rows. The server is a dumb
// pipe in the E2EE design; it stores and forwards ciphertext and never holds
// key material that could open it.
package relayd
