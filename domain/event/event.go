package event

import (
	"chat-live/domain"
)

// DomainEvent is anything pushed to a sink. Events are scoped to a room.
type DomainEvent interface {
	RoomID() domain.RoomID
}

// MessagePosted carries a canonical message to every subscriber of its room.
type MessagePosted struct {
	Message domain.Message
	Origin  string // instance that persisted the message
}

func (m MessagePosted) RoomID() domain.RoomID {
	return m.Message.RoomID
}

// RoomJoined acknowledges a join to the connection that asked for it.
type RoomJoined struct {
	Room domain.RoomID
}

func (r RoomJoined) RoomID() domain.RoomID { return r.Room }

// RoomLeft acknowledges a leave.
type RoomLeft struct {
	Room domain.RoomID
}

func (r RoomLeft) RoomID() domain.RoomID { return r.Room }

// MessageRejected tells the sender its message was neither persisted nor broadcast.
type MessageRejected struct {
	Room        domain.RoomID
	ClientToken string
	Code        string
	Reason      string
}

func (m MessageRejected) RoomID() domain.RoomID { return m.Room }
