package workers

import (
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/mocks"
	"chat-live/observability"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recordingDeliverer struct {
	mu     sync.Mutex
	events []event.MessagePosted
}

func (d *recordingDeliverer) Deliver(_ context.Context, evt event.MessagePosted) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, evt)
}

func TestFabricRelayWorker_Relays_Remote_Messages(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	fabric := mocks.NewMockFabric(ctrl)
	deliverer := &recordingDeliverer{}
	monitoring := observability.NewMonitoringManager(slog.Default())
	worker := NewFabricRelayWorker(slog.Default(), fabric, deliverer, monitoring)

	remote := event.MessagePosted{Origin: "node-2", Message: domain.Message{RoomID: "room-1"}}
	fabric.EXPECT().Subscribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, handle func(event.MessagePosted)) error {
			handle(remote)
			return fmt.Errorf("connection reset")
		})

	// When the subscription drops after one message
	err := worker.Run(context.Background())

	// Then the message was relayed and the error is returned for a restart
	req.Error(err)
	req.Equal([]event.MessagePosted{remote}, deliverer.events)
	req.EqualValues(1, monitoring.GetLatest().FabricRelayed)
}

func TestFabricRelayWorker_Stops_On_Cancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	fabric := mocks.NewMockFabric(ctrl)
	worker := NewFabricRelayWorker(slog.Default(), fabric, &recordingDeliverer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	fabric.EXPECT().Subscribe(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, handle func(event.MessagePosted)) error {
			cancel()
			return fmt.Errorf("closed")
		})

	require.ErrorIs(t, worker.Run(ctx), context.Canceled)
}
