package runtime

import (
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/mocks"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestLifecycle(t *testing.T) (*Lifecycle, *Registry, *DeliveryGroups, *mocks.MockAuthorizer) {
	ctrl := gomock.NewController(t)
	authorizer := mocks.NewMockAuthorizer(ctrl)
	registry := NewRegistry()
	groups := NewDeliveryGroups()
	return NewLifecycle(discardLogger(), registry, groups, authorizer), registry, groups, authorizer
}

func TestLifecycle_Join(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	lifecycle, registry, groups, authorizer := newTestLifecycle(t)
	conn := domain.NewConnectionID()

	authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), "alice", domain.RoomID("room-1")).Return(true, nil)

	// When the connection joins room-1
	err := lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-1"}, &recordingSink{})
	req.NoError(err)

	// Then the registry and the delivery group agree
	roomID, ok := registry.Lookup(conn)
	req.True(ok)
	req.Equal(domain.RoomID("room-1"), roomID)
	req.True(groups.Contains("room-1", conn))
}

func TestLifecycle_Rejoin_Releases_Previous_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	lifecycle, registry, groups, authorizer := newTestLifecycle(t)
	conn := domain.NewConnectionID()
	sink := &recordingSink{}

	authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), "alice", gomock.Any()).Return(true, nil).Times(2)

	// Given the connection joined room-1
	req.NoError(lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-1"}, sink))

	// When it joins room-2
	req.NoError(lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-2"}, sink))

	// Then it only belongs to room-2
	roomID, ok := registry.Lookup(conn)
	req.True(ok)
	req.Equal(domain.RoomID("room-2"), roomID)
	req.False(groups.Contains("room-1", conn))
	req.True(groups.Contains("room-2", conn))
	req.Nil(groups.Sinks("room-1"))
}

func TestLifecycle_Join_Same_Room_Twice(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	lifecycle, registry, groups, authorizer := newTestLifecycle(t)
	conn := domain.NewConnectionID()

	authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).Times(2)

	cmd := chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-1"}
	req.NoError(lifecycle.Join(ctx, cmd, &recordingSink{}))
	req.NoError(lifecycle.Join(ctx, cmd, &recordingSink{}))

	req.Equal(1, registry.Len())
	req.Len(groups.Sinks("room-1"), 1)
}

func TestLifecycle_Join_Unauthorized(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	lifecycle, registry, groups, authorizer := newTestLifecycle(t)
	conn := domain.NewConnectionID()

	// Given the user is not a participant
	authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), "mallory", domain.RoomID("room-1")).Return(false, nil)

	// When joining
	err := lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "mallory", Room: "room-1"}, &recordingSink{})

	// Then the join is refused and nothing is recorded
	req.ErrorIs(err, errors.ErrUnauthorizedRoom)
	_, ok := registry.Lookup(conn)
	req.False(ok)
	req.Nil(groups.Sinks("room-1"))
}

func TestLifecycle_Join_Authorizer_Failure_Keeps_Previous_Room(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	lifecycle, registry, _, authorizer := newTestLifecycle(t)
	conn := domain.NewConnectionID()

	gomock.InOrder(
		authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), "alice", domain.RoomID("room-1")).Return(true, nil),
		authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), "alice", domain.RoomID("room-2")).Return(false, fmt.Errorf("db down")),
	)

	req.NoError(lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-1"}, &recordingSink{}))
	err := lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-2"}, &recordingSink{})
	req.Error(err)

	roomID, ok := registry.Lookup(conn)
	req.True(ok)
	req.Equal(domain.RoomID("room-1"), roomID)
}

func TestLifecycle_Leave_And_Disconnect(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	lifecycle, registry, groups, authorizer := newTestLifecycle(t)
	conn := domain.NewConnectionID()

	authorizer.EXPECT().IsAuthorizedForRoom(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil).AnyTimes()

	// Given the connection joined room-1
	req.NoError(lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-1"}, &recordingSink{}))

	// When it leaves
	roomID, ok := lifecycle.Leave(chat.LeaveCommand{Connection: conn})

	// Then the previous room is reported and the connection is gone
	req.True(ok)
	req.Equal(domain.RoomID("room-1"), roomID)
	_, ok = registry.Lookup(conn)
	req.False(ok)
	req.False(groups.Contains("room-1", conn))

	// And leaving again reports nothing
	_, ok = lifecycle.Leave(chat.LeaveCommand{Connection: conn})
	req.False(ok)

	// When it joins again then disconnects
	req.NoError(lifecycle.Join(ctx, chat.JoinCommand{Connection: conn, UserID: "alice", Room: "room-1"}, &recordingSink{}))
	lifecycle.Disconnect(chat.DisconnectCommand{Connection: conn})

	// Then lookup is absent
	_, ok = registry.Lookup(conn)
	req.False(ok)
	req.Zero(groups.Rooms())

	// And disconnecting a connection that never joined is harmless
	lifecycle.Disconnect(chat.DisconnectCommand{Connection: domain.NewConnectionID()})
}
