package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot served on /health.
type MonitoringStats struct {
	// --- DELIVERY METRICS ---
	Connections         int64  `json:"connections"`
	JoinedConnections   int    `json:"joined_connections"`
	ActiveRooms         int    `json:"active_rooms"`
	RoomWorkers         int    `json:"room_workers"`
	MessagesIngested    uint64 `json:"messages_ingested"`
	PersistenceFailures uint64 `json:"persistence_failures"`
	Deliveries          uint64 `json:"deliveries"`
	DeliveriesDropped   uint64 `json:"deliveries_dropped"`
	FabricRelayed       uint64 `json:"fabric_relayed"`

	// --- SYSTEM METRICS ---
	RSSBytes     uint64    `json:"rss_bytes"`
	CPUPercent   float64   `json:"cpu_percent"`
	AllocMemMb   uint64    `json:"alloc_mem_mb"`
	NumGC        uint32    `json:"num_gc"`
	NumGoroutine int       `json:"num_goroutine"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Gauges are read from the live structures when a snapshot is taken.
type Gauges struct {
	JoinedConnections int
	ActiveRooms       int
	RoomWorkers       int
}

// MonitoringManager keeps delivery counters. All methods are safe on a nil receiver
// so components can run without monitoring in tests.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats

	connections         atomic.Int64
	messagesIngested    atomic.Uint64
	persistenceFailures atomic.Uint64
	deliveries          atomic.Uint64
	deliveriesDropped   atomic.Uint64
	fabricRelayed       atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log}
}

func (mm *MonitoringManager) ConnectionOpened() {
	if mm != nil {
		mm.connections.Add(1)
	}
}

func (mm *MonitoringManager) ConnectionClosed() {
	if mm != nil {
		mm.connections.Add(-1)
	}
}

func (mm *MonitoringManager) IncrMessagesIngested() {
	if mm != nil {
		mm.messagesIngested.Add(1)
	}
}

func (mm *MonitoringManager) IncrPersistenceFailures() {
	if mm != nil {
		mm.persistenceFailures.Add(1)
	}
}

func (mm *MonitoringManager) IncrDeliveries() {
	if mm != nil {
		mm.deliveries.Add(1)
	}
}

func (mm *MonitoringManager) IncrDeliveriesDropped() {
	if mm != nil {
		mm.deliveriesDropped.Add(1)
	}
}

func (mm *MonitoringManager) IncrFabricRelayed() {
	if mm != nil {
		mm.fabricRelayed.Add(1)
	}
}

// Update refreshes the snapshot with the counters, the given gauges and process figures.
func (mm *MonitoringManager) Update(gauges Gauges, rss uint64, cpu float64) MonitoringStats {
	if mm == nil {
		return MonitoringStats{}
	}
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := mm.counters()
	stats.JoinedConnections = gauges.JoinedConnections
	stats.ActiveRooms = gauges.ActiveRooms
	stats.RoomWorkers = gauges.RoomWorkers
	stats.RSSBytes = rss
	stats.CPUPercent = cpu
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	stats.NumGoroutine = runtime.NumGoroutine()
	stats.UpdatedAt = time.Now().UTC()

	mm.mu.Lock()
	mm.latestStats = stats
	mm.mu.Unlock()

	mm.log.Debug("Stats updated",
		"connections", stats.Connections,
		"rooms", stats.ActiveRooms,
		"ingested", stats.MessagesIngested,
		"dropped", stats.DeliveriesDropped,
		"rss", stats.RSSBytes,
	)
	return stats
}

// GetLatest returns the last snapshot with fresh counters.
func (mm *MonitoringManager) GetLatest() MonitoringStats {
	if mm == nil {
		return MonitoringStats{}
	}
	mm.mu.RLock()
	stats := mm.latestStats
	mm.mu.RUnlock()

	counters := mm.counters()
	stats.Connections = counters.Connections
	stats.MessagesIngested = counters.MessagesIngested
	stats.PersistenceFailures = counters.PersistenceFailures
	stats.Deliveries = counters.Deliveries
	stats.DeliveriesDropped = counters.DeliveriesDropped
	stats.FabricRelayed = counters.FabricRelayed
	return stats
}

func (mm *MonitoringManager) counters() MonitoringStats {
	return MonitoringStats{
		Connections:         mm.connections.Load(),
		MessagesIngested:    mm.messagesIngested.Load(),
		PersistenceFailures: mm.persistenceFailures.Load(),
		Deliveries:          mm.deliveries.Load(),
		DeliveriesDropped:   mm.deliveriesDropped.Load(),
		FabricRelayed:       mm.fabricRelayed.Load(),
	}
}
