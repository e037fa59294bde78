package services

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/chat"
	domainsearch "chat-live/domain/search"
	"chat-live/errors"
	"chat-live/observability"
	"chat-live/repositories"
	"chat-live/runtime"
	"chat-live/search"
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

type IChatService interface {
	Join(ctx context.Context, cmd chat.JoinCommand, sink contract.EventSink) error
	Leave(cmd chat.LeaveCommand) (domain.RoomID, bool)
	Disconnect(cmd chat.DisconnectCommand)
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (*domain.Message, error)
	GetMessages(ctx context.Context, userID string, cmd chat.GetMessageCommand) ([]domain.Message, *string, error)
	ListChats(ctx context.Context, userID string) ([]domain.ChatRoom, error)
	CreateChat(ctx context.Context, userID string, req CreateChatRequest) (domain.ChatRoom, error)
	AddParticipant(ctx context.Context, userID string, roomID domain.RoomID, req AddParticipantRequest) (domain.ChatRoom, error)
	Search(ctx context.Context, userID string, roomID domain.RoomID, query string) ([]search.Hit, error)
	Stats() observability.MonitoringStats
}

type CreateChatRequest struct {
	Name         string   `json:"name" validate:"required,max=100"`
	Participants []string `json:"participants" validate:"max=500,dive,required,max=128"`
}

type AddParticipantRequest struct {
	UserID string `json:"userId" validate:"required,max=128"`
}

type SearchRequest struct {
	Query string `validate:"required,max=256"`
}

type ChatService struct {
	orchestrator *runtime.Orchestrator
	chats        repositories.IChatRepository
	index        *search.IndexSink
	authorizer   contract.Authorizer
	monitoring   *observability.MonitoringManager
	validate     *validator.Validate
	searchLimit  int
}

// NewChatService wires the facade used by the transports. index may be nil when search is disabled.
func NewChatService(o *runtime.Orchestrator, chats repositories.IChatRepository, index *search.IndexSink,
	authorizer contract.Authorizer, monitoring *observability.MonitoringManager, searchLimit int) *ChatService {
	return &ChatService{
		orchestrator: o,
		chats:        chats,
		index:        index,
		authorizer:   authorizer,
		monitoring:   monitoring,
		validate:     validator.New(),
		searchLimit:  searchLimit,
	}
}

func (s *ChatService) Join(ctx context.Context, cmd chat.JoinCommand, sink contract.EventSink) error {
	return s.orchestrator.Join(ctx, cmd, sink)
}

func (s *ChatService) Leave(cmd chat.LeaveCommand) (domain.RoomID, bool) {
	return s.orchestrator.Leave(cmd)
}

func (s *ChatService) Disconnect(cmd chat.DisconnectCommand) {
	s.orchestrator.Disconnect(cmd)
}

func (s *ChatService) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (*domain.Message, error) {
	return s.orchestrator.PostMessage(ctx, cmd)
}

// GetMessages returns a page of history for a room the user may access.
func (s *ChatService) GetMessages(ctx context.Context, userID string, cmd chat.GetMessageCommand) ([]domain.Message, *string, error) {
	if err := s.authorize(ctx, userID, cmd.Room); err != nil {
		return nil, nil, err
	}
	return s.orchestrator.GetMessages(cmd)
}

func (s *ChatService) ListChats(ctx context.Context, userID string) ([]domain.ChatRoom, error) {
	chats, err := s.chats.ListChatsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return lo.Map(chats, func(item repositories.DiskChat, _ int) domain.ChatRoom {
		return toChatRoom(item)
	}), nil
}

// CreateChat creates a room whose participants always include its creator.
func (s *ChatService) CreateChat(ctx context.Context, userID string, req CreateChatRequest) (domain.ChatRoom, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.ChatRoom{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	participants := append([]string{userID}, req.Participants...)
	created, err := s.chats.CreateChat(ctx, req.Name, participants)
	if err != nil {
		return domain.ChatRoom{}, err
	}
	return toChatRoom(created), nil
}

// AddParticipant lets someone allowed in the room bring another user in.
func (s *ChatService) AddParticipant(ctx context.Context, userID string, roomID domain.RoomID, req AddParticipantRequest) (domain.ChatRoom, error) {
	if err := s.validate.Struct(req); err != nil {
		return domain.ChatRoom{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := s.authorize(ctx, userID, roomID); err != nil {
		return domain.ChatRoom{}, err
	}
	if err := s.chats.AddParticipant(ctx, roomID, req.UserID); err != nil {
		return domain.ChatRoom{}, err
	}
	updated, err := s.chats.GetChat(ctx, roomID)
	if err != nil {
		return domain.ChatRoom{}, err
	}
	return toChatRoom(updated), nil
}

func (s *ChatService) Search(ctx context.Context, userID string, roomID domain.RoomID, query string) ([]search.Hit, error) {
	if s.index == nil {
		return nil, nil
	}
	q := domainsearch.NewSearchQuery(query, s.searchLimit)
	if err := s.validate.Struct(SearchRequest{Query: q.Terms}); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	if err := s.authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}
	return s.index.Search(ctx, roomID, q)
}

func (s *ChatService) Stats() observability.MonitoringStats {
	return s.monitoring.GetLatest()
}

func (s *ChatService) authorize(ctx context.Context, userID string, roomID domain.RoomID) error {
	allowed, err := s.authorizer.IsAuthorizedForRoom(ctx, userID, roomID)
	if err != nil {
		return err
	}
	if !allowed {
		return errors.ErrUnauthorizedRoom
	}
	return nil
}

func toChatRoom(c repositories.DiskChat) domain.ChatRoom {
	return domain.ChatRoom{
		ID:           domain.RoomID(c.ID),
		Name:         c.Name,
		Participants: c.Participants,
		CreatedAt:    c.CreatedAt,
	}
}
