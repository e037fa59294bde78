package api

import (
	"chat-live/domain"
	"chat-live/domain/event"
	"time"
)

// Inbound frame types.
const (
	FrameJoin    = "join"
	FrameLeave   = "leave"
	FrameMessage = "message"
)

// Outbound frame types.
const (
	FrameJoined = "joined"
	FrameLeft   = "left"
	FrameError  = "error"
)

type ImageFrame struct {
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
}

// InboundFrame is what a client sends on the socket.
type InboundFrame struct {
	Type        string      `json:"type"`
	RoomID      string      `json:"roomId,omitempty"`
	Text        string      `json:"text,omitempty"`
	Image       *ImageFrame `json:"image,omitempty"`
	ClientToken string      `json:"clientToken,omitempty"`
}

// MessageFrame carries every field of the persisted record.
type MessageFrame struct {
	ID          string      `json:"id"`
	RoomID      string      `json:"roomId"`
	AuthorID    string      `json:"authorId"`
	Text        string      `json:"text,omitempty"`
	Image       *ImageFrame `json:"image,omitempty"`
	Lang        string      `json:"lang,omitempty"`
	ClientToken string      `json:"clientToken,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
}

// OutboundFrame is what the server writes on the socket.
type OutboundFrame struct {
	Type        string        `json:"type"`
	RoomID      string        `json:"roomId,omitempty"`
	Message     *MessageFrame `json:"message,omitempty"`
	Code        string        `json:"code,omitempty"`
	Error       string        `json:"error,omitempty"`
	ClientToken string        `json:"clientToken,omitempty"`
}

func ToMessageFrame(m domain.Message) MessageFrame {
	frame := MessageFrame{
		ID:          m.ID.String(),
		RoomID:      m.RoomID.String(),
		AuthorID:    m.AuthorID,
		Text:        m.Body.Text,
		Lang:        m.Lang,
		ClientToken: m.ClientToken,
		CreatedAt:   m.CreatedAt,
	}
	if m.Body.Image != nil {
		frame.Image = &ImageFrame{Name: m.Body.Image.Name, MimeType: m.Body.Image.MimeType}
	}
	return frame
}

// toOutboundFrame maps a domain event to its wire frame. ok is false for events never sent to clients.
func toOutboundFrame(e event.DomainEvent) (OutboundFrame, bool) {
	switch evt := e.(type) {
	case event.MessagePosted:
		frame := ToMessageFrame(evt.Message)
		return OutboundFrame{Type: FrameMessage, RoomID: frame.RoomID, Message: &frame}, true
	case event.RoomJoined:
		return OutboundFrame{Type: FrameJoined, RoomID: evt.Room.String()}, true
	case event.RoomLeft:
		return OutboundFrame{Type: FrameLeft, RoomID: evt.Room.String()}, true
	case event.MessageRejected:
		return OutboundFrame{
			Type:        FrameError,
			RoomID:      evt.Room.String(),
			Code:        evt.Code,
			Error:       evt.Reason,
			ClientToken: evt.ClientToken,
		}, true
	default:
		return OutboundFrame{}, false
	}
}
