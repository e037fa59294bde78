package runtime

import (
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/repositories"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

// recordingSink keeps every message it accepts.
type recordingSink struct {
	mu       sync.Mutex
	messages []domain.Message
	err      error
	delay    time.Duration
}

func (s *recordingSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	posted, ok := e.(event.MessagePosted)
	if !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, posted.Message)
	return nil
}

func (s *recordingSink) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func (s *recordingSink) Texts() []string {
	var texts []string
	for _, m := range s.Messages() {
		texts = append(texts, m.Body.Text)
	}
	return texts
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func inMemoryMessageRepository(t *testing.T) repositories.MessageRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	limit := 50
	return repositories.NewMessageRepository(db, discardLogger(), &limit)
}
