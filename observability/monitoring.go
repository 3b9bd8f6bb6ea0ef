// Package observability aggregates runtime counters for the relay.
package observability

import (
	"runtime"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time snapshot of the relay's traffic counters,
// combined with Go memory metrics.
type Stats struct {
	MessagesPosted  uint64  `json:"messages_posted"`
	EventsDelivered uint64  `json:"events_delivered"`
	EventsDropped   uint64  `json:"events_dropped"`
	DeliveryRate    float64 `json:"delivery_rate"` // events/s since the previous snapshot

	// --- SYSTEM METRICS ---
	AllocMemMb uint64 `json:"alloc_mem_mb"`
	NumGC      uint32 `json:"num_gc"`
}

// Monitor collects traffic counters from the hot fan-out path. All
// increments are atomic; a nil *Monitor is a no-op so tests can skip it.
type Monitor struct {
	messagesPosted  atomic.Uint64
	eventsDelivered atomic.Uint64
	eventsDropped   atomic.Uint64

	// Compteurs de fenêtre pour le calcul du débit
	windowDelivered atomic.Uint64
	lastCheckNano   atomic.Int64
}

func NewMonitor() *Monitor {
	m := &Monitor{}
	m.lastCheckNano.Store(time.Now().UnixNano())
	return m
}

func (m *Monitor) MessagePosted() {
	if m == nil {
		return
	}
	m.messagesPosted.Add(1)
}

func (m *Monitor) EventDelivered() {
	if m == nil {
		return
	}
	m.eventsDelivered.Add(1)
	m.windowDelivered.Add(1)
}

func (m *Monitor) EventDropped() {
	if m == nil {
		return
	}
	m.eventsDropped.Add(1)
}

// Snapshot reads the cumulative counters and resets the rate window.
func (m *Monitor) Snapshot() Stats {
	if m == nil {
		return Stats{}
	}

	now := time.Now()
	last := m.lastCheckNano.Swap(now.UnixNano())
	window := m.windowDelivered.Swap(0)

	stats := Stats{
		MessagesPosted:  m.messagesPosted.Load(),
		EventsDelivered: m.eventsDelivered.Load(),
		EventsDropped:   m.eventsDropped.Load(),
	}

	if duration := now.Sub(time.Unix(0, last)).Seconds(); duration > 0 {
		stats.DeliveryRate = float64(window) / duration
	}

	// Métriques système Go
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	return stats
}
