// Package domain contains core concepts of the chat system.
// This file defines Message records and related rules.
// Messages are immutable once persisted.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Image is a reference to an uploaded picture. Upload and storage happen elsewhere.
type Image struct {
	Name     string
	MimeType string
}

// Body is what the author wrote: a text, an image reference, or both.
type Body struct {
	Text  string
	Image *Image
}

// IsEmpty reports whether the body carries nothing to display.
func (b Body) IsEmpty() bool {
	return b.Text == "" && b.Image == nil
}

// Message is the canonical record of a chat message.
// Only values returned by the persistence layer are ever broadcast.
type Message struct {
	ID          uuid.UUID // server assigned
	RoomID      RoomID
	AuthorID    string
	Body        Body
	Lang        string
	ClientToken string
	CreatedAt   time.Time
}
