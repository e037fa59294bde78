// Package runtime handles connection membership, message ingestion and fan-out.
// It orchestrates the system without containing business logic or domain rules.
package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/observability"
	"chat-live/repositories"
	"chat-live/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

type Orchestrator struct {
	mu                sync.Mutex
	log               *slog.Logger
	rooms             map[domain.RoomID]*workers.RoomWorker
	extraWorkers      []contract.Worker
	stopped           bool
	supervisor        contract.ISupervisor
	registry          *Registry
	groups            *DeliveryGroups
	lifecycle         *Lifecycle
	ingester          contract.Ingester
	router            *Router
	messageRepository repositories.IMessageRepository
	monitoring        *observability.MonitoringManager
	roomBufferSize    int
	roomIdleTimeout   time.Duration
	metricInterval    time.Duration
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry *Registry, groups *DeliveryGroups, lifecycle *Lifecycle,
	ingester contract.Ingester, router *Router, messageRepository repositories.IMessageRepository,
	monitoring *observability.MonitoringManager,
	roomBufferSize int, roomIdleTimeout, metricInterval time.Duration) *Orchestrator {
	return &Orchestrator{
		log:               log,
		rooms:             make(map[domain.RoomID]*workers.RoomWorker),
		supervisor:        supervisor,
		registry:          registry,
		groups:            groups,
		lifecycle:         lifecycle,
		ingester:          ingester,
		router:            router,
		messageRepository: messageRepository,
		monitoring:        monitoring,
		roomBufferSize:    roomBufferSize,
		roomIdleTimeout:   roomIdleTimeout,
		metricInterval:    metricInterval,
	}
}

// AddWorkers registers long running workers started along with the orchestrator.
func (o *Orchestrator) AddWorkers(w ...contract.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.extraWorkers = append(o.extraWorkers, w...)
}

// Join subscribes the connection to a room, releasing any previous one.
func (o *Orchestrator) Join(ctx context.Context, cmd chat.JoinCommand, sink contract.EventSink) error {
	return o.lifecycle.Join(ctx, cmd, sink)
}

// Leave releases the room currently joined by the connection.
func (o *Orchestrator) Leave(cmd chat.LeaveCommand) (domain.RoomID, bool) {
	return o.lifecycle.Leave(cmd)
}

// Disconnect forgets the connection. Messages it posted earlier and still queued
// are broadcast to the remaining subscribers.
func (o *Orchestrator) Disconnect(cmd chat.DisconnectCommand) {
	o.lifecycle.Disconnect(cmd)
}

// PostMessage ingests a message for the room the connection joined and, once it is persisted,
// broadcasts it to every subscriber of that room.
// A connection without a room is silently ignored: the result is nil without error.
// The error wraps errors.ErrInvalidMessage or errors.ErrPersistenceFailure when nothing was broadcast.
func (o *Orchestrator) PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (*domain.Message, error) {
	roomID, ok := o.registry.Lookup(cmd.Connection)
	if !ok {
		o.log.Debug("Message ignored, connection has not joined a room",
			"connection_id", cmd.Connection, "error", errors.ErrRegistrationAbsent)
		return nil, nil
	}
	cmd.Room = roomID

	reply := make(chan workers.PostResult, 1)
	if err := o.submit(workers.PostJob{Command: cmd, Reply: reply}); err != nil {
		o.log.Warn("Message refused", "room_id", roomID, "connection_id", cmd.Connection, "error", err)
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-reply:
		if res.Err != nil {
			if errors.Code(res.Err) == errors.CodePersistenceFailure {
				o.monitoring.IncrPersistenceFailures()
			}
			return nil, res.Err
		}
		o.monitoring.IncrMessagesIngested()
		return &res.Message, nil
	}
}

// submit routes the job to the worker of its room, spawning it on first use.
func (o *Orchestrator) submit(job workers.PostJob) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return errors.ErrStopped
	}

	roomID := job.Command.Room
	w, ok := o.rooms[roomID]
	if !ok {
		w = workers.NewRoomWorker(o.log, roomID, o.roomBufferSize,
			o.ingester, o.router, o.roomIdleTimeout, o.releaseRoom)
		if !o.supervisor.Spawn(w) {
			return errors.ErrStopped
		}
		o.rooms[roomID] = w
	}
	return w.Submit(job)
}

// releaseRoom detaches an idle room worker. It refuses while jobs are still queued.
func (o *Orchestrator) releaseRoom(w *workers.RoomWorker) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if w.Pending() > 0 {
		return false
	}
	if o.rooms[w.Room()] == w {
		delete(o.rooms, w.Room())
	}
	return true
}

// GetMessages pages through the persisted history of a room, newest first.
func (o *Orchestrator) GetMessages(cmd chat.GetMessageCommand) ([]domain.Message, *string, error) {
	messages, cursor, err := o.messageRepository.GetMessages(cmd.Room, cmd.Cursor)
	if err != nil {
		return nil, nil, err
	}
	return ToMessages(messages), cursor, nil
}

// Gauges reads the live structure sizes for telemetry.
func (o *Orchestrator) Gauges() observability.Gauges {
	o.mu.Lock()
	roomWorkers := len(o.rooms)
	o.mu.Unlock()
	return observability.Gauges{
		JoinedConnections: o.registry.Len(),
		ActiveRooms:       o.groups.Rooms(),
		RoomWorkers:       roomWorkers,
	}
}

// Start registers the background workers and launches the supervisor without blocking.
func (o *Orchestrator) Start(ctx context.Context) error {
	// Preparation phase (No Lock)
	background := []contract.Worker{
		workers.NewTelemetryWorker(o.log, o.metricInterval, o.monitoring, o.Gauges),
	}
	if fabric := o.router.Fabric(); fabric != nil {
		background = append(background, workers.NewFabricRelayWorker(o.log, fabric, o.router, o.monitoring))
	}

	// Critical Section (Short Lock)
	o.mu.Lock()
	background = append(background, o.extraWorkers...)
	o.supervisor.Add(background...)
	o.mu.Unlock()

	// Execution phase (No Lock)
	o.log.Info("Starting orchestrator and all supervised workers", "workers", len(background))
	o.supervisor.Launch(ctx)
	return nil
}

// Stop refuses new messages, cancels the supervision context
// and waits for every worker to return.
// Messages queued before Stop are answered with errors.ErrStopped.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")

	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.supervisor.Stop()
	o.supervisor.Wait()
	o.log.Debug("Orchestrator workers stopped")
}
