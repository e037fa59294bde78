package sink

import (
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/errors"
	"context"
	"fmt"
	"sync"
	"time"
)

// ConnectionSink buffers the events of one live connection.
// The transport drains Events() and writes them on the socket.
type ConnectionSink struct {
	connection      domain.ConnectionID
	events          chan event.DomainEvent
	done            chan struct{}
	closeOnce       sync.Once
	deliveryTimeout time.Duration
}

func NewConnectionSink(connection domain.ConnectionID, bufferSize int, deliveryTimeout time.Duration) *ConnectionSink {
	return &ConnectionSink{
		connection:      connection,
		events:          make(chan event.DomainEvent, bufferSize),
		done:            make(chan struct{}),
		deliveryTimeout: deliveryTimeout,
	}
}

// Consume is called by the router
// Redirect the event through the concerned owner of the channel
// The websocket writer will take it from now
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(s.deliveryTimeout)
	defer timer.Stop()

	select {
	case s.events <- e:
		return nil
	case <-s.done:
		return errors.ErrConnectionClosed
	case <-timer.C:
		return fmt.Errorf("%w: buffer full for connection %s", errors.ErrDeliveryFailure, s.connection)
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", errors.ErrDeliveryFailure, ctx.Err())
	}
}

// Events is read by the single writer of the connection.
func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Done is closed once the sink stops accepting events.
func (s *ConnectionSink) Done() <-chan struct{} {
	return s.done
}

// Close stops accepting events. Safe to call more than once.
func (s *ConnectionSink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
