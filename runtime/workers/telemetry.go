package workers

import (
	"chat-live/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// TelemetryWorker periodically refreshes the monitoring snapshot with
// the orchestrator gauges and the process own memory and cpu usage.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	monitoring     *observability.MonitoringManager
	gauges         func() observability.Gauges
}

func NewTelemetryWorker(log *slog.Logger,
	metricInterval time.Duration,
	monitoring *observability.MonitoringManager,
	gauges func() observability.Gauges) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		monitoring:     monitoring,
		gauges:         gauges,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Debug("Failed to collect self stats", "err", err)
			}
			stats := w.monitoring.Update(w.gauges(), rss, cpu)
			w.log.Debug("Telemetry",
				"connections", stats.Connections,
				"active_rooms", stats.ActiveRooms,
				"room_workers", stats.RoomWorkers,
				"messages_ingested", stats.MessagesIngested,
				"deliveries_dropped", stats.DeliveriesDropped)
		}
	}
}

// selfStats retrieves resident memory and cpu usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return memInfo.RSS, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
