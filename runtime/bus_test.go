package runtime

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"workroom/domain"
	"workroom/domain/event"
	"workroom/observability"
)

func committed(roomID uuid.UUID, seq uint64) event.MessageCommitted {
	return event.MessageCommitted{Message: domain.Message{
		ID:       uuid.New(),
		RoomID:   roomID,
		Sequence: seq,
	}}
}

func TestBus_Publish_Preserves_Order(t *testing.T) {
	req := require.New(t)
	bus := NewBus(slog.Default(), 10, observability.NewMonitoring())
	roomID := uuid.New()

	for i := 1; i <= 3; i++ {
		bus.Publish(committed(roomID, uint64(i)))
	}

	for i := 1; i <= 3; i++ {
		e := <-bus.Events()
		msg, ok := e.(event.MessageCommitted)
		req.True(ok)
		req.Equal(uint64(i), msg.Message.Sequence)
	}
}

func TestBus_Publish_Never_Blocks_When_Full(t *testing.T) {
	req := require.New(t)
	monitoring := observability.NewMonitoring()
	bus := NewBus(slog.Default(), 1, monitoring)
	roomID := uuid.New()

	// Given a full buffer and no consumer
	bus.Publish(committed(roomID, 1))

	// When more events arrive, Publish returns instead of blocking
	done := make(chan struct{})
	go func() {
		bus.Publish(committed(roomID, 2))
		close(done)
	}()
	<-done

	// Then the overflow was dropped, not queued
	req.Equal(uint64(1), monitoring.Snapshot().EventsDropped)
	e := <-bus.Events()
	req.Equal(uint64(1), e.(event.MessageCommitted).Message.Sequence)
	select {
	case <-bus.Events():
		req.Fail("No second event should have been queued")
	default:
	}
}

func TestLockArena_Serializes_Per_Key(t *testing.T) {
	req := require.New(t)
	arena := NewLockArena()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := arena.Lock("room-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	req.Equal(50, counter)
}

func TestLockArena_Keys_Are_Independent(t *testing.T) {
	arena := NewLockArena()

	// Holding one key must not block another
	unlockA := arena.Lock("room-a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := arena.Lock("room-b")
		unlockB()
		close(done)
	}()
	<-done
}
