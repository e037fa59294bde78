package runtime

import (
	"chat-live/domain"
	"sync"
)

// Registry is the connection registry: one entry per live connection,
// pointing to the room it currently joined.
// A connection is in at most one room; registering again overwrites.
type Registry struct {
	mu      sync.RWMutex
	entries map[domain.ConnectionID]domain.RoomID
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[domain.ConnectionID]domain.RoomID)}
}

// Register inserts or replaces the room of a connection.
func (r *Registry) Register(connectionID domain.ConnectionID, roomID domain.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[connectionID] = roomID
}

// Lookup returns the joined room. A missing entry is a normal outcome
// (message before join, after disconnect) and is reported with false.
func (r *Registry) Lookup(connectionID domain.ConnectionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roomID, ok := r.entries[connectionID]
	return roomID, ok
}

// Remove deletes the entry, no-op if absent.
func (r *Registry) Remove(connectionID domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, connectionID)
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
