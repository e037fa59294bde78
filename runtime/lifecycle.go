package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Lifecycle reacts to join, leave and disconnect signals and keeps the
// registry and the delivery groups in agreement.
type Lifecycle struct {
	mu         sync.Mutex
	log        *slog.Logger
	registry   contract.IRegistry
	groups     contract.IDeliveryGroups
	authorizer contract.Authorizer
}

func NewLifecycle(log *slog.Logger, registry contract.IRegistry,
	groups contract.IDeliveryGroups, authorizer contract.Authorizer) *Lifecycle {
	return &Lifecycle{log: log, registry: registry, groups: groups, authorizer: authorizer}
}

// Join subscribes the connection to the room's delivery group and records the mapping.
// A second join moves the connection: the previous group subscription is released first
// so the old room stops fanning out to it.
func (l *Lifecycle) Join(ctx context.Context, cmd chat.JoinCommand, sink contract.EventSink) error {
	allowed, err := l.authorizer.IsAuthorizedForRoom(ctx, cmd.UserID, cmd.Room)
	if err != nil {
		return fmt.Errorf("authorization check failed: %w", err)
	}
	if !allowed {
		l.log.Warn("Join refused", "user_id", cmd.UserID, "room_id", cmd.Room, "connection_id", cmd.Connection)
		return errors.ErrUnauthorizedRoom
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if previous, ok := l.registry.Lookup(cmd.Connection); ok && previous != cmd.Room {
		l.groups.Remove(previous, cmd.Connection)
		l.log.Debug("Connection left previous room", "connection_id", cmd.Connection, "room_id", previous)
	}
	l.groups.Add(cmd.Room, cmd.Connection, sink)
	l.registry.Register(cmd.Connection, cmd.Room)
	l.log.Debug("Connection joined room", "connection_id", cmd.Connection, "room_id", cmd.Room)
	return nil
}

// Leave releases the current room of a connection and returns it.
func (l *Lifecycle) Leave(cmd chat.LeaveCommand) (domain.RoomID, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.release(cmd.Connection)
}

// Disconnect forgets the connection entirely. Safe to call for a connection that never joined.
func (l *Lifecycle) Disconnect(cmd chat.DisconnectCommand) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if roomID, ok := l.release(cmd.Connection); ok {
		l.log.Debug("Connection disconnected", "connection_id", cmd.Connection, "room_id", roomID)
	}
}

func (l *Lifecycle) release(connectionID domain.ConnectionID) (domain.RoomID, bool) {
	roomID, ok := l.registry.Lookup(connectionID)
	if !ok {
		return "", false
	}
	l.groups.Remove(roomID, connectionID)
	l.registry.Remove(connectionID)
	return roomID, true
}
