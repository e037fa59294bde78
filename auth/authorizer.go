package auth

import (
	"chat-live/domain"
	"chat-live/repositories"
	"context"
)

// AllowAll lets any authenticated user join any room.
type AllowAll struct{}

func (AllowAll) IsAuthorizedForRoom(context.Context, string, domain.RoomID) (bool, error) {
	return true, nil
}

// ParticipantAuthorizer only admits the participants recorded for the chat.
type ParticipantAuthorizer struct {
	chats repositories.IChatRepository
}

func NewParticipantAuthorizer(chats repositories.IChatRepository) *ParticipantAuthorizer {
	return &ParticipantAuthorizer{chats: chats}
}

func (a *ParticipantAuthorizer) IsAuthorizedForRoom(ctx context.Context, userID string, roomID domain.RoomID) (bool, error) {
	return a.chats.IsParticipant(ctx, roomID, userID)
}
