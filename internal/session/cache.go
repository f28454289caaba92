package session

import (
	"sync"

	"unichat/internal/domain"
)

// KeyCache holds resolved session keys for rooms that are currently open.
// It is an explicit object owned by the chat controller, not ambient state;
// the controller invalidates entries on room switch and close.
type KeyCache struct {
	mu   sync.Mutex
	keys map[domain.RoomID]domain.SessionKey
}

// NewKeyCache returns an empty cache.
func NewKeyCache() *KeyCache {
	return &KeyCache{keys: make(map[domain.RoomID]domain.SessionKey)}
}

// Get returns the cached key for room, if present.
func (c *KeyCache) Get(room domain.RoomID) (domain.SessionKey, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k, ok := c.keys[room]
	return k, ok
}

// Put stores the key for room.
func (c *KeyCache) Put(room domain.RoomID, key domain.SessionKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[room] = key
}

// Drop discards the key for room so it does not outlive the open room.
func (c *KeyCache) Drop(room domain.RoomID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.keys, room)
}

// Reset discards every cached key, for app shutdown.
func (c *KeyCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[domain.RoomID]domain.SessionKey)
}
