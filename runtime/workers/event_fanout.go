package workers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"workroom/contract"
	"workroom/domain/event"
	"workroom/observability"
)

// Ensure *EventFanout implements the contract.Worker interface at
// compile time.
var _ contract.Worker = (*EventFanout)(nil)

// EventFanout drains the committed-event channel and delivers each
// event to the live sinks of its room plus the permanent sinks
// (audit, telemetry projections).
//
// Delivery is at-most-once per connection and sequential per event:
// draining a single channel with one worker preserves, for any one
// room, the commit order of its events at every sink. A sink that
// errors or exceeds the delivery timeout loses that event silently;
// the client reconciles on reconnect from its last-known sequence.
type EventFanout struct {
	log            *slog.Logger
	registry       contract.IRegistry
	events         <-chan event.DomainEvent
	permanentSinks []contract.EventSink
	sinkTimeout    time.Duration
	monitoring     *observability.Monitoring
}

func NewEventFanout(
	log *slog.Logger,
	registry contract.IRegistry,
	events <-chan event.DomainEvent,
	permanentSinks []contract.EventSink,
	sinkTimeout time.Duration,
	monitoring *observability.Monitoring) *EventFanout {
	return &EventFanout{
		log:            log,
		registry:       registry,
		events:         events,
		permanentSinks: permanentSinks,
		sinkTimeout:    sinkTimeout,
		monitoring:     monitoring,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case evt, ok := <-w.events:
			if !ok {
				return nil
			}
			w.Fanout(ctx, evt)
		case <-ctx.Done():
			w.log.Debug("Context done, stopping event fanout")
			return nil
		}
	}
}

// Fanout delivers one event to every interested sink. Failures never
// propagate to the originating write.
func (w *EventFanout) Fanout(ctx context.Context, evt event.DomainEvent) {
	sinks := append(w.registry.GetSinksForRoom(evt.RoomID()), w.permanentSinks...)
	for _, sink := range sinks {
		sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
		if err := sink.Consume(sinkCtx, evt); err != nil {
			w.monitoring.EventDropped()
			w.log.Debug(fmt.Sprintf("Sink dropped event for room %s", evt.RoomID()), "error", err)
		} else {
			w.monitoring.EventFanned()
		}
		cancel()
	}
}
