package repositories

import (
	"chat-live/domain"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// fixedClock returns increasing timestamps one minute apart.
func fixedClock(start time.Time) func() time.Time {
	current := start.Add(-time.Minute)
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func Test_Append_Assigns_ID_And_Timestamp(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	// When a message is appended
	stored, err := repository.AppendMessage(ctx, AppendRequest{
		Room:   "room-1",
		Author: "alice",
		Body: domain.Body{
			Text:  "hello",
			Image: &domain.Image{Name: "cat.png", MimeType: "image/png"},
		},
		Lang: "en",
	})

	// Then the repository assigned an identity and a time
	req.NoError(err)
	req.NotEqual(uuid.Nil, stored.ID)
	req.False(stored.At.IsZero())
	req.Equal("room-1", stored.Room)
	req.Equal("cat.png", stored.ImageName)

	// And the record can be read back
	fetched, _, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Equal([]DiskMessage{stored}, fetched)
}

func Test_Record_And_Get_Sorted_Messages(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	repository.now = fixedClock(time.Now().UTC())

	authors := []string{"Alice", "Bob", "Clara"}
	var stored []DiskMessage
	for _, author := range authors {
		m, err := repository.AppendMessage(ctx, AppendRequest{
			Room: "room-1", Author: author, Body: domain.Body{Text: "this message will self destruct"},
		})
		req.NoError(err)
		stored = append(stored, m)
	}
	// Given a message in another room sharing the prefix
	_, err := repository.AppendMessage(ctx, AppendRequest{Room: "room-10", Author: "Dan", Body: domain.Body{Text: "elsewhere"}})
	req.NoError(err)

	// When fetching messages
	fetched, _, err := repository.GetMessages("room-1", nil)
	req.NoError(err)

	// Then the messages are sorted, newest first, and only from that room
	req.Equal(lo.Reverse(stored), fetched)
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	limit := 2
	repository := NewMessageRepository(openDB(t), slog.Default(), &limit)
	repository.now = fixedClock(time.Now().UTC())

	var stored []DiskMessage
	for _, author := range []string{"Alice", "Bob", "Clara"} {
		m, err := repository.AppendMessage(ctx, AppendRequest{Room: "room-1", Author: author, Body: domain.Body{Text: "hi"}})
		req.NoError(err)
		stored = append(stored, m)
	}

	// When reading the first page
	page, cursor, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Len(page, limit)
	req.Equal("Clara", page[0].Author)
	req.NotNil(cursor)

	// Then the cursor resumes after the last returned message
	next, _, err := repository.GetMessages("room-1", cursor)
	req.NoError(err)
	req.Len(next, 1)
	req.Equal(stored[0], next[0])
}

func Test_Append_Same_Client_Token_Is_Not_Duplicated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	request := AppendRequest{Room: "room-1", Author: "alice", Body: domain.Body{Text: "hello"}, ClientToken: "tok-1"}

	// When the same send is retried
	first, err := repository.AppendMessage(ctx, request)
	req.NoError(err)
	second, err := repository.AppendMessage(ctx, request)
	req.NoError(err)

	// Then the stored record is returned and nothing new is written
	req.Equal(first, second)
	fetched, _, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Len(fetched, 1)

	// And the same token in another room is a different message
	other, err := repository.AppendMessage(ctx, AppendRequest{Room: "room-2", Author: "alice", Body: domain.Body{Text: "hello"}, ClientToken: "tok-1"})
	req.NoError(err)
	req.NotEqual(first.ID, other.ID)
}

func Test_Append_With_Canceled_Context(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repository.AppendMessage(ctx, AppendRequest{Room: "room-1", Author: "alice", Body: domain.Body{Text: "hello"}})
	req.ErrorIs(err, context.Canceled)

	fetched, cursor, err := repository.GetMessages("room-1", nil)
	req.NoError(err)
	req.Empty(fetched)
	req.Nil(cursor)
}

func Test_Room_With_Separator_In_ID(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)

	_, err := repository.AppendMessage(ctx, AppendRequest{Room: "a:b", Author: "alice", Body: domain.Body{Text: "in a:b"}})
	req.NoError(err)
	_, err = repository.AppendMessage(ctx, AppendRequest{Room: "a", Author: "alice", Body: domain.Body{Text: "in a"}})
	req.NoError(err)

	fetched, _, err := repository.GetMessages("a", nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("in a", fetched[0].Text)
}
