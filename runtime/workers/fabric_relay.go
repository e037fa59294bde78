package workers

import (
	"chat-live/contract"
	"chat-live/domain/event"
	"chat-live/observability"
	"context"
	"log/slog"
)

// Deliverer hands a message published by another instance to the local subscribers.
type Deliverer interface {
	Deliver(ctx context.Context, evt event.MessagePosted)
}

// FabricRelayWorker listens to the fabric and relays remote messages locally.
// A dropped subscription is returned as an error so the supervisor restarts it.
type FabricRelayWorker struct {
	log        *slog.Logger
	fabric     contract.Fabric
	deliverer  Deliverer
	monitoring *observability.MonitoringManager
}

func NewFabricRelayWorker(log *slog.Logger, fabric contract.Fabric, deliverer Deliverer,
	monitoring *observability.MonitoringManager) *FabricRelayWorker {
	return &FabricRelayWorker{log: log, fabric: fabric, deliverer: deliverer, monitoring: monitoring}
}

func (w *FabricRelayWorker) Run(ctx context.Context) error {
	w.log.Info("Starting fabric relay worker")
	err := w.fabric.Subscribe(ctx, func(evt event.MessagePosted) {
		w.deliverer.Deliver(ctx, evt)
		w.monitoring.IncrFabricRelayed()
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
