package workers

import (
	"context"
	"log/slog"
	"time"

	"chat-relay/observability"
)

// PresenceCounter exposes the live-connection counts of the registry.
type PresenceCounter interface {
	CountUsers() int
	CountConnections() int
}

// StatsReporterWorker periodically logs a traffic snapshot: cumulative
// fan-out counters plus the current presence figures.
type StatsReporterWorker struct {
	log      *slog.Logger
	monitor  *observability.Monitor
	presence PresenceCounter
	interval time.Duration
}

func NewStatsReporterWorker(log *slog.Logger, monitor *observability.Monitor,
	presence PresenceCounter, interval time.Duration) *StatsReporterWorker {
	return &StatsReporterWorker{log: log, monitor: monitor, presence: presence, interval: interval}
}

func (w *StatsReporterWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.report() // dernier instantané avant l'arrêt
			return nil
		case <-ticker.C:
			w.report()
		}
	}
}

func (w *StatsReporterWorker) report() {
	stats := w.monitor.Snapshot()
	w.log.Info("Relay stats",
		"online_users", w.presence.CountUsers(),
		"connections", w.presence.CountConnections(),
		"messages_posted", stats.MessagesPosted,
		"events_delivered", stats.EventsDelivered,
		"events_dropped", stats.EventsDropped,
		"delivery_rate", stats.DeliveryRate,
		"mem_mb", stats.AllocMemMb,
		"num_gc", stats.NumGC,
	)
}
