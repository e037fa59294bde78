// Package search keeps a full text index of the canonical messages.
package search

import (
	"chat-live/domain"
	domainsearch "chat-live/domain/search"
	"chat-live/domain/event"
	"chat-live/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
)

const (
	fieldRoom    = "room"
	fieldAuthor  = "author"
	fieldText    = "text"
	fieldCreated = "created"
)

// Hit is one message matching a search.
type Hit struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
	Score     float64   `json:"score"`
}

// IndexSink indexes every message it receives.
// Consume only queues the message; Run writes to the index so the router never waits on it.
type IndexSink struct {
	log    *slog.Logger
	writer *bluge.Writer
	queue  chan event.MessagePosted
}

func NewIndexSink(log *slog.Logger, writer *bluge.Writer, bufferSize int) *IndexSink {
	return &IndexSink{log: log, writer: writer, queue: make(chan event.MessagePosted, bufferSize)}
}

func (s *IndexSink) Consume(_ context.Context, e event.DomainEvent) error {
	posted, ok := e.(event.MessagePosted)
	if !ok || posted.Message.Body.Text == "" {
		return nil
	}
	select {
	case s.queue <- posted:
		return nil
	default:
		return fmt.Errorf("%w: search index queue is full", errors.ErrDeliveryFailure)
	}
}

func (s *IndexSink) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case posted := <-s.queue:
			if err := s.Index(posted.Message); err != nil {
				s.log.Warn("Message not indexed", "message_id", posted.Message.ID, "error", err)
			}
		}
	}
}

// Index writes the message to the index, replacing any previous version.
func (s *IndexSink) Index(message domain.Message) error {
	doc := bluge.NewDocument(message.ID.String()).
		AddField(bluge.NewKeywordField(fieldRoom, message.RoomID.String()).StoreValue()).
		AddField(bluge.NewKeywordField(fieldAuthor, message.AuthorID).StoreValue()).
		AddField(bluge.NewTextField(fieldText, message.Body.Text).StoreValue()).
		AddField(bluge.NewKeywordField(fieldCreated, message.CreatedAt.UTC().Format(time.RFC3339Nano)).StoreValue())
	return s.writer.Update(doc.ID(), doc)
}

// Search returns the best matches for the query inside one room.
func (s *IndexSink) Search(ctx context.Context, roomID domain.RoomID, query domainsearch.Query) ([]Hit, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("failed to open index reader: %w", err)
	}
	defer func() { _ = reader.Close() }()

	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewTermQuery(roomID.String()).SetField(fieldRoom)).
		AddMust(bluge.NewMatchQuery(query.Terms).SetField(fieldText))
	if query.Author != "" {
		q.AddMust(bluge.NewTermQuery(query.Author).SetField(fieldAuthor))
	}

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(query.Limit, q))
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit := Hit{RoomID: roomID.String(), Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ID = string(value)
			case fieldAuthor:
				hit.AuthorID = string(value)
			case fieldText:
				hit.Text = string(value)
			case fieldCreated:
				hit.CreatedAt, _ = time.Parse(time.RFC3339Nano, string(value))
			}
			return true
		})
		if err != nil {
			break
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read search results: %w", err)
	}
	return hits, nil
}
