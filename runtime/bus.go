package runtime

import (
	"fmt"
	"log/slog"

	"workroom/domain/event"
	"workroom/observability"
)

// Bus carries committed events from the writers to the fan-out
// worker. Publish never blocks the committing caller: a full channel
// drops the event, which is acceptable because delivery to live
// sessions is at-most-once and clients reconcile on reconnect via the
// sequence-numbered log.
//
// A single consumer drains the channel, so for one room the fan-out
// observes events in commit order: writers publish while still
// holding the room's writer lock.
type Bus struct {
	log        *slog.Logger
	events     chan event.DomainEvent
	monitoring *observability.Monitoring
}

func NewBus(log *slog.Logger, bufferSize int, monitoring *observability.Monitoring) *Bus {
	return &Bus{
		log:        log,
		events:     make(chan event.DomainEvent, bufferSize),
		monitoring: monitoring,
	}
}

func (b *Bus) Publish(e event.DomainEvent) {
	select {
	case b.events <- e:
	default:
		b.monitoring.EventDropped()
		b.log.Warn(fmt.Sprintf("Event channel full for room %s, dropping event", e.RoomID()))
	}
}

// Events exposes the consuming side to the fan-out worker.
func (b *Bus) Events() <-chan event.DomainEvent {
	return b.events
}
