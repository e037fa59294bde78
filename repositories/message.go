//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"chat-live/domain"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// IMessageRepository is the persistence port for messages.
type IMessageRepository interface {
	AppendMessage(ctx context.Context, req AppendRequest) (DiskMessage, error)
	GetMessages(room domain.RoomID, cursor *string) ([]DiskMessage, *string, error)
}

// AppendRequest is what the ingestion pipeline asks to persist.
// ID and timestamp are assigned by the repository.
type AppendRequest struct {
	Room        domain.RoomID
	Author      string
	Body        domain.Body
	Lang        string
	ClientToken string
}

type DiskMessage struct {
	ID          uuid.UUID
	Room        string
	Author      string
	Text        string
	ImageName   string
	ImageMime   string
	Lang        string
	ClientToken string
	At          time.Time
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
	now           func() time.Time
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages, now: time.Now}
}

// AppendMessage persists a message in BadgerDB and returns the stored record.
// The key is formatted as "msg:{room}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
//
// When the request carries a client token already seen in this room, the first
// record is returned and nothing is written, so a retried send is not duplicated.
func (m MessageRepository) AppendMessage(ctx context.Context, req AppendRequest) (DiskMessage, error) {
	if err := ctx.Err(); err != nil {
		return DiskMessage{}, err
	}

	message := DiskMessage{
		ID:          uuid.New(),
		Room:        string(req.Room),
		Author:      req.Author,
		Text:        req.Body.Text,
		Lang:        req.Lang,
		ClientToken: req.ClientToken,
		At:          m.now().UTC(),
	}
	if req.Body.Image != nil {
		message.ImageName = req.Body.Image.Name
		message.ImageMime = req.Body.Image.MimeType
	}

	var stored DiskMessage
	err := m.db.Update(func(txn *badger.Txn) error {
		if req.ClientToken != "" {
			existing, found, err := m.findByToken(txn, req.Room, req.ClientToken)
			if err != nil {
				return err
			}
			if found {
				m.log.Debug("Duplicate client token, returning stored message",
					"room_id", req.Room, "client_token", req.ClientToken)
				stored = existing
				return nil
			}
		}

		key := messageKey(req.Room, message.At, message.ID)
		if err := txn.Set(key, marshalMessage(message)); err != nil {
			return err
		}
		if req.ClientToken != "" {
			if err := txn.Set(tokenKey(req.Room, req.ClientToken), key); err != nil {
				return err
			}
		}
		stored = message
		return nil
	})
	if err != nil {
		return DiskMessage{}, err
	}
	return stored, nil
}

func (m MessageRepository) findByToken(txn *badger.Txn, room domain.RoomID, token string) (DiskMessage, bool, error) {
	item, err := txn.Get(tokenKey(room, token))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return DiskMessage{}, false, nil
	}
	if err != nil {
		return DiskMessage{}, false, err
	}
	msgKey, err := item.ValueCopy(nil)
	if err != nil {
		return DiskMessage{}, false, err
	}
	msgItem, err := txn.Get(msgKey)
	if err != nil {
		return DiskMessage{}, false, err
	}
	var message DiskMessage
	err = msgItem.Value(func(val []byte) error {
		message, err = unmarshalMessage(val)
		return err
	})
	return message, err == nil, err
}

// GetMessages retrieves messages for a specific room using a reverse prefix scan,
// newest first. Thanks to the padded timestamp in the key, messages are naturally sorted by time.
// The returned cursor is the key suffix of the last message and resumes the scan from there.
// It stops collecting messages once the configured limitMessages is reached.
func (m MessageRepository) GetMessages(room domain.RoomID, cursor *string) ([]DiskMessage, *string, error) {
	var messages []DiskMessage
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(room)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Start past the newest possible timestamp and walk backwards
			seekKey = append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		default:
			seekKey = append(append([]byte{}, prefix...), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()[len(prefix):]) == *cursor {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(messages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			err := item.Value(func(value []byte) error {
				message, err := unmarshalMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// Room identifiers are opaque: escaping keeps a ':' inside an id from
// colliding with the key separator.
func roomSegment(room domain.RoomID) string {
	return url.QueryEscape(string(room))
}

func messagePrefix(room domain.RoomID) []byte {
	return []byte(fmt.Sprintf("msg:%s:", roomSegment(room)))
}

func messageKey(room domain.RoomID, at time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d:%s", roomSegment(room), at.UnixNano(), id))
}

func tokenKey(room domain.RoomID, token string) []byte {
	return []byte(fmt.Sprintf("tok:%s:%s", roomSegment(room), token))
}
