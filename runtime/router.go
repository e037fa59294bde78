package runtime

import (
	"chat-live/contract"
	"chat-live/domain"
	"chat-live/domain/event"
	"chat-live/observability"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Router fans a canonical message out to every connection subscribed to its room,
// the sender included. Delivery is best effort: a failing subscriber is logged and
// skipped, never retried, and never stops the others.
//
// Router is safe for concurrent use, but ordering inside a room is only guaranteed
// when a single goroutine broadcasts for that room (see workers.RoomWorker).
type Router struct {
	log            *slog.Logger
	groups         contract.IDeliveryGroups
	permanentSinks []contract.EventSink
	fabric         contract.Fabric
	origin         string
	sinkTimeout    time.Duration
	monitoring     *observability.MonitoringManager
}

func NewRouter(log *slog.Logger, groups contract.IDeliveryGroups, origin string,
	sinkTimeout time.Duration, monitoring *observability.MonitoringManager) *Router {
	return &Router{log: log, groups: groups, origin: origin, sinkTimeout: sinkTimeout, monitoring: monitoring}
}

// Add registers sinks receiving every message persisted by this instance.
func (r *Router) Add(sinks ...contract.EventSink) *Router {
	r.permanentSinks = append(r.permanentSinks, sinks...)
	return r
}

// WithFabric shares every broadcast with the other instances.
func (r *Router) WithFabric(fabric contract.Fabric) *Router {
	r.fabric = fabric
	return r
}

func (r *Router) Origin() string { return r.origin }

func (r *Router) Fabric() contract.Fabric { return r.fabric }

// Broadcast delivers the message to the local delivery group and the permanent sinks,
// then publishes it on the fabric when one is configured.
// It returns once every local sink accepted, refused or timed out.
func (r *Router) Broadcast(ctx context.Context, message domain.Message) {
	evt := event.MessagePosted{Message: message, Origin: r.origin}
	sinks := r.groups.Sinks(message.RoomID)
	r.fanout(ctx, evt, sinks, true)
	r.fanout(ctx, evt, r.permanentSinks, false)

	if r.fabric == nil {
		return
	}
	if err := r.fabric.Publish(ctx, evt); err != nil {
		r.log.Warn("Fabric publish failed, remote instances will miss the message",
			"room_id", message.RoomID, "message_id", message.ID, "error", err)
	}
}

// Deliver hands a message persisted by another instance to the local delivery group only.
func (r *Router) Deliver(ctx context.Context, evt event.MessagePosted) {
	if evt.Origin == r.origin {
		return
	}
	r.fanout(ctx, evt, r.groups.Sinks(evt.RoomID()), true)
}

// fanout calls every sink concurrently, each under its own timeout, and waits for all of them.
func (r *Router) fanout(ctx context.Context, evt event.MessagePosted, sinks []contract.EventSink, subscribers bool) {
	var wg sync.WaitGroup
	for _, sink := range sinks {
		wg.Add(1)
		go func(s contract.EventSink) {
			defer wg.Done()
			sinkCtx, cancel := context.WithTimeout(ctx, r.sinkTimeout)
			defer cancel()

			if err := s.Consume(sinkCtx, evt); err != nil {
				r.log.Debug("Delivery dropped",
					"room_id", evt.RoomID(), "message_id", evt.Message.ID, "error", err)
				if subscribers {
					r.monitoring.IncrDeliveriesDropped()
				}
				return
			}
			if subscribers {
				r.monitoring.IncrDeliveries()
			}
		}(sink)
	}
	wg.Wait()
}
