package workers

import (
	"context"
	"log/slog"
	"time"

	"workroom/contract"
	"workroom/observability"
)

var _ contract.Worker = (*Telemetry)(nil)

// Telemetry periodically reports the monitoring counters.
type Telemetry struct {
	log        *slog.Logger
	monitoring *observability.Monitoring
	interval   time.Duration
}

func NewTelemetry(log *slog.Logger, monitoring *observability.Monitoring, interval time.Duration) *Telemetry {
	return &Telemetry{log: log, monitoring: monitoring, interval: interval}
}

func (w *Telemetry) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := w.monitoring.Snapshot()
			w.log.Info("Telemetry",
				"messages_committed", stats.MessagesCommitted,
				"events_fanned", stats.EventsFanned,
				"events_dropped", stats.EventsDropped,
				"sessions_connected", stats.SessionsConnected,
				"jobs_running", stats.JobsRunning,
			)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		}
	}
}
