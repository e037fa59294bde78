package workers

import (
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestRoomWorker_Broadcasts_Only_Persisted_Messages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ingester := mocks.NewMockIngester(ctrl)
	broadcaster := mocks.NewMockBroadcaster(ctrl)
	worker := NewRoomWorker(slog.Default(), "room-1", 4, ingester, broadcaster, time.Minute,
		func(*RoomWorker) bool { return true })

	stored := domain.Message{ID: uuid.New(), RoomID: "room-1", Body: domain.Body{Text: "ok"}}
	gomock.InOrder(
		ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(stored, nil),
		broadcaster.EXPECT().Broadcast(gomock.Any(), stored),
		ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).Return(domain.Message{}, errors.ErrPersistenceTimeout),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = worker.Run(ctx) }()

	// When a message is persisted
	first := make(chan PostResult, 1)
	req.NoError(worker.Submit(PostJob{Command: chat.PostMessageCommand{Room: "room-1", Text: "ok"}, Reply: first}))
	res := <-first

	// Then it is broadcast and returned
	req.NoError(res.Err)
	req.Equal(stored, res.Message)

	// When persistence fails
	second := make(chan PostResult, 1)
	req.NoError(worker.Submit(PostJob{Command: chat.PostMessageCommand{Room: "room-1", Text: "ko"}, Reply: second}))
	res = <-second

	// Then nothing is broadcast and the failure is returned
	req.ErrorIs(res.Err, errors.ErrPersistenceFailure)
}

func TestRoomWorker_Submit_Full(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	worker := NewRoomWorker(slog.Default(), "room-1", 1, mocks.NewMockIngester(ctrl), mocks.NewMockBroadcaster(ctrl),
		time.Minute, func(*RoomWorker) bool { return true })

	// Given a worker not running and a full queue
	req.NoError(worker.Submit(PostJob{Reply: make(chan PostResult, 1)}))
	req.Equal(1, worker.Pending())

	// Then the next job is refused
	req.ErrorIs(worker.Submit(PostJob{Reply: make(chan PostResult, 1)}), errors.ErrRoomBusy)
}

func TestRoomWorker_Idle_Release(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	released := make(chan struct{})
	attempts := 0
	worker := NewRoomWorker(slog.Default(), "room-1", 1, mocks.NewMockIngester(ctrl), mocks.NewMockBroadcaster(ctrl),
		10*time.Millisecond, func(*RoomWorker) bool {
			attempts++
			// The first release is refused, as if a job was being enqueued
			if attempts == 1 {
				return false
			}
			close(released)
			return true
		})

	done := make(chan error, 1)
	go func() { done <- worker.Run(context.Background()) }()

	select {
	case err := <-done:
		req.NoError(err)
	case <-time.After(time.Second):
		req.Fail("idle worker should have returned")
	}
	<-released
	req.Equal(2, attempts)
}

func TestRoomWorker_Drains_On_Stop(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	worker := NewRoomWorker(slog.Default(), "room-1", 2, mocks.NewMockIngester(ctrl), mocks.NewMockBroadcaster(ctrl),
		time.Minute, func(*RoomWorker) bool { return true })

	reply := make(chan PostResult, 1)
	req.NoError(worker.Submit(PostJob{Reply: reply}))

	// Given a canceled context before the worker ran
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// When the worker runs
	err := worker.Run(ctx)
	req.ErrorIs(err, context.Canceled)

	// Then the queued poster is answered without ingestion

	res := <-reply
	req.ErrorIs(res.Err, errors.ErrStopped)
}

func TestRoomWorker_Panic_Answers_Poster(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	ingester := mocks.NewMockIngester(ctrl)
	worker := NewRoomWorker(slog.Default(), "room-1", 1, ingester, mocks.NewMockBroadcaster(ctrl),
		time.Minute, func(*RoomWorker) bool { return true })

	ingester.EXPECT().Ingest(gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, chat.PostMessageCommand) (domain.Message, error) {
			panic("boom")
		})

	reply := make(chan PostResult, 1)
	req.NoError(worker.Submit(PostJob{Reply: reply}))

	req.Panics(func() { _ = worker.Run(context.Background()) })
	res := <-reply
	req.ErrorIs(res.Err, errors.ErrWorkerPanic)
}
