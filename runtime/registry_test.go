package runtime

import (
	"chat-live/domain"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegistry_Register_And_Lookup(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := domain.NewConnectionID()

	// Given no connection is registered
	_, ok := registry.Lookup(connectionID)
	req.False(ok)

	// When the connection is registered in a room
	registry.Register(connectionID, "room-1")

	// Then the lookup finds it
	roomID, ok := registry.Lookup(connectionID)
	req.True(ok)
	req.Equal(domain.RoomID("room-1"), roomID)
	req.Equal(1, registry.Len())
}

func TestRegistry_Register_Twice_Keeps_Last_Room(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := domain.NewConnectionID()

	// When the same connection is registered twice
	registry.Register(connectionID, "room-1")
	registry.Register(connectionID, "room-2")

	// Then only the last room remains
	roomID, ok := registry.Lookup(connectionID)
	req.True(ok)
	req.Equal(domain.RoomID("room-2"), roomID)
	req.Equal(1, registry.Len())
}

func TestRegistry_Register_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := domain.NewConnectionID()

	registry.Register(connectionID, "room-1")
	registry.Register(connectionID, "room-1")

	roomID, ok := registry.Lookup(connectionID)
	req.True(ok)
	req.Equal(domain.RoomID("room-1"), roomID)
	req.Equal(1, registry.Len())
}

func TestRegistry_Remove(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	connectionID := domain.NewConnectionID()

	// Given a registered connection
	registry.Register(connectionID, "room-1")

	// When it is removed
	registry.Remove(connectionID)

	// Then the lookup is absent
	_, ok := registry.Lookup(connectionID)
	req.False(ok)
	req.Zero(registry.Len())

	// And removing an unknown connection is harmless
	registry.Remove(domain.NewConnectionID())
}

func TestRegistry_Concurrent_Access(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := domain.NewConnectionID()
			registry.Register(id, "room-1")
			_, _ = registry.Lookup(id)
			registry.Remove(id)
		}()
	}
	wg.Wait()
	req.Zero(registry.Len())
}
