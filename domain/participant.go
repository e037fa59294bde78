// Package domain contains core concepts of the chat system.
// This file defines live connections and the identity attached to them.
// No runtime, network, or UI logic should be added here.
package domain

import "github.com/google/uuid"

// ConnectionID identifies one live transport session. Never persisted.
type ConnectionID string

func NewConnectionID() ConnectionID {
	return ConnectionID(uuid.NewString())
}

func (c ConnectionID) String() string { return string(c) }

// Participant is an authenticated user behind a live connection.
type Participant struct {
	Connection ConnectionID
	UserID     string
}
