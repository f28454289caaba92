// Package chat orchestrates an open conversation: key resolution, history
// load and decryption, sending, and live relay events.
//
// # State machine
//
// Per open room: Idle -> ResolvingKey -> LoadingHistory -> Ready. Send and
// receive are only valid in Ready and leave the controller in Ready. Closing
// the room, or opening a different one, returns to Idle and discards the old
// room's session key from the cache.
//
// Opening a room is epoch-tagged: if the user switches rooms while a resolve
// or history fetch is in flight, the stale completion is discarded instead
// of overwriting the now-current room's state.
//
// Relay events for the room being opened are buffered while history loads
// and flushed (deduplicated by id) when the room turns Ready, so a live
// event can never render ahead of older history. Events for other rooms only
// update preview metadata and are never decrypted.
package chat
