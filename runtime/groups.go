package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"sync"
)

// DeliveryGroups keeps, for each room, the sinks of the connections subscribed to it.
type DeliveryGroups struct {
	mu     sync.RWMutex
	groups map[domain.RoomID]map[domain.ConnectionID]contract.EventSink
}

func NewDeliveryGroups() *DeliveryGroups {
	return &DeliveryGroups{groups: make(map[domain.RoomID]map[domain.ConnectionID]contract.EventSink)}
}

// Add subscribes a connection to a room. If the room does not yet exist
// it is initialized on the fly.
func (g *DeliveryGroups) Add(roomID domain.RoomID, connectionID domain.ConnectionID, sink contract.EventSink) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.groups[roomID]
	if !ok {
		members = make(map[domain.ConnectionID]contract.EventSink)
		g.groups[roomID] = members
	}
	members[connectionID] = sink
}

// Remove unsubscribes a connection. Empty groups are dropped so idle rooms do not leak.
func (g *DeliveryGroups) Remove(roomID domain.RoomID, connectionID domain.ConnectionID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	members, ok := g.groups[roomID]
	if !ok {
		return
	}
	delete(members, connectionID)
	if len(members) == 0 {
		delete(g.groups, roomID)
	}
}

// Sinks returns a snapshot of the room's sinks, nil when nobody is subscribed.
func (g *DeliveryGroups) Sinks(roomID domain.RoomID) []contract.EventSink {
	g.mu.RLock()
	defer g.mu.RUnlock()

	members, ok := g.groups[roomID]
	if !ok {
		return nil
	}
	sinks := make([]contract.EventSink, 0, len(members))
	for _, sink := range members {
		sinks = append(sinks, sink)
	}
	return sinks
}

// Contains reports whether the connection is subscribed to the room.
func (g *DeliveryGroups) Contains(roomID domain.RoomID, connectionID domain.ConnectionID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.groups[roomID][connectionID]
	return ok
}

// Rooms returns the number of rooms with at least one subscriber.
func (g *DeliveryGroups) Rooms() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.groups)
}
