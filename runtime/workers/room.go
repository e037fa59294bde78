package workers

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"context"
	"log/slog"
	"time"
)

// PostResult is the outcome of one ingestion, sent back to the poster.
type PostResult struct {
	Message domain.Message
	Err     error
}

// PostJob carries a command to a room worker. Reply must be buffered.
type PostJob struct {
	Command chat.PostMessageCommand
	Reply   chan<- PostResult
}

// RoomWorker serializes ingestion and broadcast of one room.
// Messages are broadcast in the order they were persisted because
// the next job only starts once the previous broadcast returned.
type RoomWorker struct {
	room        domain.RoomID
	jobs        chan PostJob
	ingester    contract.Ingester
	broadcaster contract.Broadcaster
	idleTimeout time.Duration
	release     func(*RoomWorker) bool
	log         *slog.Logger
}

// NewRoomWorker builds a worker for the room.
// release is called once the worker stayed idle for idleTimeout; it must return true
// only if the worker was detached and no more jobs can reach it.
func NewRoomWorker(
	log *slog.Logger,
	room domain.RoomID,
	bufferSize int,
	ingester contract.Ingester,
	broadcaster contract.Broadcaster,
	idleTimeout time.Duration,
	release func(*RoomWorker) bool,
) *RoomWorker {
	return &RoomWorker{
		room:        room,
		jobs:        make(chan PostJob, bufferSize),
		ingester:    ingester,
		broadcaster: broadcaster,
		idleTimeout: idleTimeout,
		release:     release,
		log:         log.With("room", room.String()),
	}
}

func (w *RoomWorker) Room() domain.RoomID { return w.room }

// Pending returns the number of queued jobs.
func (w *RoomWorker) Pending() int { return len(w.jobs) }

// Submit queues the job without blocking.
func (w *RoomWorker) Submit(job PostJob) error {
	select {
	case w.jobs <- job:
		return nil
	default:
		return errors.ErrRoomBusy
	}
}

func (w *RoomWorker) Run(ctx context.Context) error {
	idle := time.NewTimer(w.idleTimeout)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			w.log.Debug("Stopping room worker")
			w.drain()
			return ctx.Err()
		}
		select {
		case <-ctx.Done():
			continue
		case job := <-w.jobs:
			w.handle(ctx, job)
			idle.Reset(w.idleTimeout)
		case <-idle.C:
			if w.release(w) {
				w.log.Debug("Room worker idle, released")
				return nil
			}
			idle.Reset(w.idleTimeout)
		}
	}
}

func (w *RoomWorker) handle(ctx context.Context, job PostJob) {
	defer func() {
		if r := recover(); r != nil {
			job.Reply <- PostResult{Err: errors.ErrWorkerPanic}
			panic(r)
		}
	}()

	message, err := w.ingester.Ingest(ctx, job.Command)
	if err != nil {
		job.Reply <- PostResult{Err: err}
		return
	}
	w.broadcaster.Broadcast(ctx, message)
	job.Reply <- PostResult{Message: message}
}

// drain answers queued jobs so no poster waits forever on shutdown.
func (w *RoomWorker) drain() {
	for {
		select {
		case job := <-w.jobs:
			job.Reply <- PostResult{Err: errors.ErrStopped}
		default:
			return
		}
	}
}
