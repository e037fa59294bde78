package chat

import "chat-live/domain"

type Command interface {
	ConnectionID() domain.ConnectionID
}

// JoinCommand asks to move a connection into a room's delivery group.
type JoinCommand struct {
	Connection domain.ConnectionID
	UserID     string
	Room       domain.RoomID
}

func (c JoinCommand) ConnectionID() domain.ConnectionID { return c.Connection }

// LeaveCommand releases the connection's current room without closing it.
type LeaveCommand struct {
	Connection domain.ConnectionID
}

func (c LeaveCommand) ConnectionID() domain.ConnectionID { return c.Connection }

// DisconnectCommand is emitted once when the transport closes.
type DisconnectCommand struct {
	Connection domain.ConnectionID
}

func (c DisconnectCommand) ConnectionID() domain.ConnectionID { return c.Connection }

// PostMessageCommand is the raw client payload plus the identity resolved by the transport.
// Room is filled from the connection registry, never from the client.
type PostMessageCommand struct {
	Connection  domain.ConnectionID
	Room        domain.RoomID
	UserID      string
	Text        string
	Image       *domain.Image
	ClientToken string
}

func (c PostMessageCommand) ConnectionID() domain.ConnectionID { return c.Connection }

type GetMessageCommand struct {
	Room   domain.RoomID
	Cursor *string
}
