//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Launch(ctx context.Context)
	Run(ctx context.Context)
	Spawn(worker Worker) bool
	Stop()
	Wait()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives events for one consumer (a live connection, an index...).
// A sink must never block longer than the context allows.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps a live connection to the single room it currently joined.
type IRegistry interface {
	Register(connectionID domain.ConnectionID, roomID domain.RoomID)
	Lookup(connectionID domain.ConnectionID) (domain.RoomID, bool)
	Remove(connectionID domain.ConnectionID)
}

// IDeliveryGroups holds, per room, the sinks of the connections subscribed to it.
type IDeliveryGroups interface {
	Add(roomID domain.RoomID, connectionID domain.ConnectionID, sink EventSink)
	Remove(roomID domain.RoomID, connectionID domain.ConnectionID)
	Sinks(roomID domain.RoomID) []EventSink
}

// Authorizer decides whether a user may join a room.
type Authorizer interface {
	IsAuthorizedForRoom(ctx context.Context, userID string, roomID domain.RoomID) (bool, error)
}

// Ingester validates and persists one message. The returned message is the canonical record.
type Ingester interface {
	Ingest(ctx context.Context, cmd chat.PostMessageCommand) (domain.Message, error)
}

// Broadcaster delivers a canonical message to every subscriber of its room.
type Broadcaster interface {
	Broadcast(ctx context.Context, message domain.Message)
}

// Fabric shares canonical messages between server instances.
type Fabric interface {
	Publish(ctx context.Context, evt event.MessagePosted) error
	// Subscribe blocks and calls handle for every message published by any instance
	// until ctx is canceled.
	Subscribe(ctx context.Context, handle func(event.MessagePosted)) error
}

type IOrchestrator interface {
	Join(ctx context.Context, cmd chat.JoinCommand, sink EventSink) error
	Leave(cmd chat.LeaveCommand) (domain.RoomID, bool)
	Disconnect(cmd chat.DisconnectCommand)
	PostMessage(ctx context.Context, cmd chat.PostMessageCommand) (*domain.Message, error)
	Start(ctx context.Context) error
	Stop()
}
