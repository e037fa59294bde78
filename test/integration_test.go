package test

import (
	"chat-live/auth"
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/domain/event"
	"chat-live/moderation"
	"chat-live/observability"
	"chat-live/repositories"
	"chat-live/runtime"
	"chat-live/runtime/workers"
	"chat-live/search"
	"chat-live/services"
	"chat-live/sink"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

type stack struct {
	service  *services.ChatService
	messages repositories.MessageRepository
}

func newStack(t *testing.T) stack {
	t.Helper()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	req.NoError(err)
	t.Cleanup(func() { _ = writer.Close() })

	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	censored, err := moderation.NewEmbeddedLoader().LoadAll("censored")
	req.NoError(err)
	moderator, err := moderation.NewModerator(censored.Words, '*', log)
	req.NoError(err)

	messages := repositories.NewMessageRepository(db, log, lo.ToPtr(100))
	chats := repositories.NewChatRepository(db)
	authorizer := auth.NewParticipantAuthorizer(chats)
	monitoring := observability.NewMonitoringManager(log)

	registry := runtime.NewRegistry()
	groups := runtime.NewDeliveryGroups()
	lifecycle := runtime.NewLifecycle(log, registry, groups, authorizer)
	ingestion := runtime.NewIngestionPipeline(log, messages, moderator, time.Second, 500)
	index := search.NewIndexSink(log, writer, 100)
	router := runtime.NewRouter(log, groups, "node-1", 500*time.Millisecond, monitoring).Add(index)
	supervisor := workers.NewSupervisor(log, 50*time.Millisecond)

	orchestrator := runtime.NewOrchestrator(log, supervisor, registry, groups, lifecycle, ingestion, router,
		messages, monitoring, 64, time.Second, 100*time.Millisecond)
	orchestrator.AddWorkers(index)
	req.NoError(orchestrator.Start(context.Background()))
	t.Cleanup(orchestrator.Stop)

	return stack{
		service:  services.NewChatService(orchestrator, chats, index, authorizer, monitoring, 10),
		messages: messages,
	}
}

func connect(t *testing.T, s stack, user string, room domain.RoomID) (domain.ConnectionID, *sink.ConnectionSink) {
	t.Helper()
	conn := domain.NewConnectionID()
	connection := sink.NewConnectionSink(conn, 16, time.Second)
	require.NoError(t, s.service.Join(context.Background(), chat.JoinCommand{Connection: conn, UserID: user, Room: room}, connection))
	return conn, connection
}

func nextMessage(t *testing.T, connection *sink.ConnectionSink) domain.Message {
	t.Helper()
	for {
		select {
		case e := <-connection.Events():
			if posted, ok := e.(event.MessagePosted); ok {
				return posted.Message
			}
		case <-time.After(2 * time.Second):
			t.Fatal("no message delivered")
			return domain.Message{}
		}
	}
}

func Test_Scenario(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := newStack(t)

	// Given a room where alice and bob take part
	room, err := s.service.CreateChat(ctx, "alice", services.CreateChatRequest{Name: "general", Participants: []string{"bob"}})
	req.NoError(err)

	connA, sinkA := connect(t, s, "alice", room.ID)
	_, sinkB := connect(t, s, "bob", room.ID)

	// And mallory is not allowed in
	err = s.service.Join(ctx, chat.JoinCommand{Connection: domain.NewConnectionID(), UserID: "mallory", Room: room.ID},
		sink.NewConnectionSink("mallory", 1, time.Second))
	req.Error(err)

	// When alice posts two messages, the second one censored
	first, err := s.service.PostMessage(ctx, chat.PostMessageCommand{Connection: connA, UserID: "alice", Text: "the release is ready"})
	req.NoError(err)
	second, err := s.service.PostMessage(ctx, chat.PostMessageCommand{Connection: connA, UserID: "alice", Text: "you bastard"})
	req.NoError(err)

	// Then both members receive the canonical records in the same order
	for _, connection := range []*sink.ConnectionSink{sinkA, sinkB} {
		req.Equal(first.ID, nextMessage(t, connection).ID)
		got := nextMessage(t, connection)
		req.Equal(second.ID, got.ID)
		req.NotContains(got.Body.Text, "bastard")
	}

	// And the history holds what was broadcast, newest first
	history, _, err := s.service.GetMessages(ctx, "bob", chat.GetMessageCommand{Room: room.ID})
	req.NoError(err)
	req.Len(history, 2)
	req.Equal(second.ID, history[0].ID)
	req.Equal(first.ID, history[1].ID)

	// And the first one is searchable once indexed
	req.Eventually(func() bool {
		hits, err := s.service.Search(ctx, "bob", room.ID, "release")
		return err == nil && len(hits) == 1 && hits[0].ID == first.ID.String()
	}, 2*time.Second, 20*time.Millisecond)

	// And the counters moved
	req.Eventually(func() bool {
		return s.service.Stats().MessagesIngested == 2
	}, time.Second, 20*time.Millisecond)
}

func Test_Scenario_Disconnect_Stops_Delivery(t *testing.T) {
	ctx := context.Background()
	req := require.New(t)
	s := newStack(t)

	room, err := s.service.CreateChat(ctx, "alice", services.CreateChatRequest{Name: "ops", Participants: []string{"bob"}})
	req.NoError(err)
	connA, sinkA := connect(t, s, "alice", room.ID)
	connB, sinkB := connect(t, s, "bob", room.ID)

	// Given bob disconnected
	s.service.Disconnect(chat.DisconnectCommand{Connection: connB})
	sinkB.Close()

	// When alice posts
	_, err = s.service.PostMessage(ctx, chat.PostMessageCommand{Connection: connA, UserID: "alice", Text: "still there?"})
	req.NoError(err)

	// Then alice still gets her own message
	req.Equal("still there?", nextMessage(t, sinkA).Body.Text)

	// And a post from the stale connection is a no-op
	message, err := s.service.PostMessage(ctx, chat.PostMessageCommand{Connection: connB, UserID: "bob", Text: "ghost"})
	req.NoError(err)
	req.Nil(message)

	history, _, err := s.messages.GetMessages(room.ID, nil)
	req.NoError(err)
	req.Len(history, 1)
}
