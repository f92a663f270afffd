//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"workroom/domain/event"

	"github.com/google/uuid"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself: the supervisor recovers panics and
// restarts it.
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// Used for logging and supervision, avoiding manual naming in the
// Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink consumes a committed event. A session handle pushed by the
// broadcaster is an EventSink; so are permanent sinks (audit, metrics).
// Delivery is at-most-once: an error drops the event for that sink.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry maps rooms to the sinks of their currently connected
// participants.
type IRegistry interface {
	GetSinksForRoom(roomID uuid.UUID) []EventSink
	Subscribe(participantID string, roomID uuid.UUID, sink EventSink)
	Unsubscribe(participantID string, roomID uuid.UUID)
}

// EventBus accepts committed events for asynchronous fan-out.
// Publish never blocks the committing writer.
type EventBus interface {
	Publish(e event.DomainEvent)
}
