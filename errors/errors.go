package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrRegistrationAbsent = fmt.Errorf("connection is not registered to any room")
	ErrPersistenceFailure = fmt.Errorf("message could not be persisted")
	ErrPersistenceTimeout = fmt.Errorf("%w: timeout", ErrPersistenceFailure)
	ErrDeliveryFailure    = fmt.Errorf("message could not be delivered to subscriber")
	ErrConnectionClosed   = fmt.Errorf("%w: connection closed", ErrDeliveryFailure)
	ErrUnauthorizedRoom   = fmt.Errorf("user is not allowed in this room")
	ErrInvalidMessage     = fmt.Errorf("invalid message")
	ErrRoomBusy           = fmt.Errorf("room is busy, retry later")
	ErrInvalidToken       = fmt.Errorf("invalid or expired token")
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrStopped            = fmt.Errorf("orchestrator is stopped")
)

// Wire codes sent back to clients in rejection frames.
const (
	CodeInvalidMessage     = "invalid_message"
	CodePersistenceFailure = "persistence_failure"
	CodeUnauthorized       = "unauthorized"
	CodeRoomBusy           = "room_busy"
	CodeNotJoined          = "not_joined"
	CodeNotFound           = "not_found"
	CodeUnavailable        = "unavailable"
	CodeInternal           = "internal"
)

// Code maps an error to the code a client sees.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrInvalidMessage), errors.Is(err, ErrInvalidPayload):
		return CodeInvalidMessage
	case errors.Is(err, ErrPersistenceFailure):
		return CodePersistenceFailure
	case errors.Is(err, ErrUnauthorizedRoom):
		return CodeUnauthorized
	case errors.Is(err, ErrRoomBusy):
		return CodeRoomBusy
	case errors.Is(err, ErrRegistrationAbsent):
		return CodeNotJoined
	case errors.Is(err, ErrChatNotFound):
		return CodeNotFound
	case errors.Is(err, ErrStopped):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}
