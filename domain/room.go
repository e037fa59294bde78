package domain

import "time"

// RoomID identifies a durable chat room. It is opaque to the real-time core.
type RoomID string

func (r RoomID) String() string { return string(r) }

// ChatRoom is the durable conversation a connection can join.
// Its identity is stable across every connection that references it.
type ChatRoom struct {
	ID           RoomID
	Name         string
	Participants []string
	CreatedAt    time.Time
}

// HasParticipant reports whether userID belongs to the room.
func (c ChatRoom) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
