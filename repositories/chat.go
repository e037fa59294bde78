//go:generate go run go.uber.org/mock/mockgen -source=chat.go -destination=../mocks/mock_chat_repository.go -package=mocks
package repositories

import (
	"chat-live/domain"
	chatErrors "chat-live/errors"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IChatRepository stores chat rooms and who takes part in them.
type IChatRepository interface {
	CreateChat(ctx context.Context, name string, participants []string) (DiskChat, error)
	GetChat(ctx context.Context, roomID domain.RoomID) (DiskChat, error)
	AddParticipant(ctx context.Context, roomID domain.RoomID, userID string) error
	IsParticipant(ctx context.Context, roomID domain.RoomID, userID string) (bool, error)
	ListChatsForUser(ctx context.Context, userID string) ([]DiskChat, error)
}

type DiskChat struct {
	ID           string
	Name         string
	Participants []string
	CreatedAt    time.Time
}

type ChatRepository struct {
	db  *badger.DB
	now func() time.Time
}

func NewChatRepository(db *badger.DB) *ChatRepository {
	return &ChatRepository{db: db, now: time.Now}
}

// CreateChat stores a new room and indexes every participant under "member:{user}:{room}".
func (c *ChatRepository) CreateChat(ctx context.Context, name string, participants []string) (DiskChat, error) {
	if err := ctx.Err(); err != nil {
		return DiskChat{}, err
	}
	chat := DiskChat{
		ID:           uuid.NewString(),
		Name:         name,
		Participants: lo.Uniq(lo.Compact(participants)),
		CreatedAt:    c.now().UTC(),
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(chatKey(domain.RoomID(chat.ID)), marshalChat(chat)); err != nil {
			return err
		}
		for _, p := range chat.Participants {
			if err := txn.Set(memberKey(p, domain.RoomID(chat.ID)), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return DiskChat{}, err
	}
	return chat, nil
}

func (c *ChatRepository) GetChat(ctx context.Context, roomID domain.RoomID) (DiskChat, error) {
	if err := ctx.Err(); err != nil {
		return DiskChat{}, err
	}
	var chat DiskChat
	err := c.db.View(func(txn *badger.Txn) error {
		var err error
		chat, err = getChat(txn, roomID)
		return err
	})
	return chat, err
}

// AddParticipant is idempotent.
func (c *ChatRepository) AddParticipant(ctx context.Context, roomID domain.RoomID, userID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		chat, err := getChat(txn, roomID)
		if err != nil {
			return err
		}
		if slices.Contains(chat.Participants, userID) {
			return nil
		}
		chat.Participants = append(chat.Participants, userID)
		if err := txn.Set(chatKey(roomID), marshalChat(chat)); err != nil {
			return err
		}
		return txn.Set(memberKey(userID, roomID), nil)
	})
}

func (c *ChatRepository) IsParticipant(ctx context.Context, roomID domain.RoomID, userID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := c.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(memberKey(userID, roomID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// ListChatsForUser returns the rooms the user takes part in, newest first.
func (c *ChatRepository) ListChatsForUser(ctx context.Context, userID string) ([]DiskChat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var chats []DiskChat
	err := c.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("member:%s:", userSegment(userID)))
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false // membership lives in the key
		it := txn.NewIterator(options)
		defer it.Close()

		var roomIDs []domain.RoomID
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			segment := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			roomIDs = append(roomIDs, unescapeRoom(segment))
		}

		for _, roomID := range roomIDs {
			chat, err := getChat(txn, roomID)
			if errors.Is(err, chatErrors.ErrChatNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			chats = append(chats, chat)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(chats, func(a, b DiskChat) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return chats, nil
}

func getChat(txn *badger.Txn, roomID domain.RoomID) (DiskChat, error) {
	item, err := txn.Get(chatKey(roomID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DiskChat{}, fmt.Errorf("%w: %s", chatErrors.ErrChatNotFound, roomID)
	}
	if err != nil {
		return DiskChat{}, err
	}
	var chat DiskChat
	err = item.Value(func(val []byte) error {
		chat, err = unmarshalChat(val)
		return err
	})
	return chat, err
}

func chatKey(roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("chat:%s", roomSegment(roomID)))
}

func memberKey(userID string, roomID domain.RoomID) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userSegment(userID), roomSegment(roomID)))
}

func userSegment(userID string) string {
	return roomSegment(domain.RoomID(userID))
}

func unescapeRoom(segment string) domain.RoomID {
	if unescaped, err := url.QueryUnescape(segment); err == nil {
		return domain.RoomID(unescaped)
	}
	return domain.RoomID(segment)
}
