package test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"workroom/domain"
	"workroom/domain/event"
	"workroom/observability"
	"workroom/projection"
	"workroom/repositories"
	"workroom/runtime"
	"workroom/runtime/workers"
	"workroom/services"
)

// relaySink forwards fanned-out events to a client timeline and
// signals the first delivery, standing in for a live connection.
type relaySink struct {
	timeline *projection.Timeline
	done     chan struct{}
	once     *sync.Once
}

func (s relaySink) Consume(ctx context.Context, e event.DomainEvent) error {
	if err := s.timeline.Consume(ctx, e); err != nil {
		return err
	}
	// Membership events queued before the subscribe may still drain
	// through this sink; only a committed message ends the wait.
	if _, ok := e.(event.MessageCommitted); ok {
		s.once.Do(func() { close(s.done) })
	}
	return nil
}

func Test_Scenario(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := require.New(t)
	// Reduced to 16 Mo for testing (avoid 20 Go of storage)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)

	log := slog.Default()
	monitoring := observability.NewMonitoring()
	locks := runtime.NewLockArena()
	registry := runtime.NewRegistry(monitoring)
	bus := runtime.NewBus(log, 64, monitoring)
	jobs := runtime.NewJobs(log, monitoring)

	roomRepo := repositories.NewRoomRepository(db, log)
	participantRepo := repositories.NewParticipantRepository(db, log)
	messageRepo := repositories.NewMessageRepository(db, log, nil)
	keyRepo := repositories.NewKeyRepository(db, log)

	encryptionService := services.NewEncryptionService(keyRepo, log)
	participantService := services.NewParticipantService(
		roomRepo, participantRepo, encryptionService, bus, locks, time.Hour, log)
	roomService := services.NewRoomService(
		roomRepo, participantRepo, messageRepo, encryptionService, bus, jobs, locks, 3, log)
	messageService := services.NewMessageService(
		roomRepo, participantRepo, messageRepo, bus, locks, monitoring, log)

	supervisor := workers.NewSupervisor(log)
	supervisor.Add(workers.NewEventFanout(
		log, registry, bus.Events(), nil, time.Second, monitoring))
	go supervisor.Run(ctx)

	// Clean everything at the end of the test
	t.Cleanup(func() {
		supervisor.Stop()
		jobs.Wait()
		db.Close()
	})

	// Given two users with initialized encryption sharing a room
	_, err = encryptionService.InitializeUserEncryption("alice", "alice-credential")
	req.NoError(err)
	_, err = encryptionService.InitializeUserEncryption("bob", "bob-credential")
	req.NoError(err)

	room, err := roomService.CreateRoom(domain.CreateRoomCommand{
		WorkspaceID: "acme",
		CreatorID:   "alice",
		Kind:        domain.RoomKindGroup,
		Name:        "project-x",
	})
	req.NoError(err)

	invited, err := participantService.AddParticipants(domain.AddParticipantsCommand{
		RoomID:  room.ID,
		ActorID: "alice",
		UserIDs: []string{"bob"},
	})
	req.NoError(err)
	_, err = participantService.AcceptRoomInvitation(domain.AcceptInvitationCommand{
		InvitationID: invited.Invited[0].ID,
		UserID:       "bob",
	})
	req.NoError(err)

	// And bob's connected session projecting the room timeline
	done := make(chan struct{})
	timeline := projection.NewTimeline("bob", room.ID)
	registry.Subscribe("bob", room.ID, relaySink{
		timeline: timeline,
		done:     done,
		once:     &sync.Once{},
	})

	// When alice sends a message
	sent, err := messageService.SendMessage(domain.SendMessageCommand{
		RoomID:     room.ID,
		SenderID:   "alice",
		Ciphertext: []byte("sealed payload"),
		Nonce:      []byte("nonce"),
	})
	req.NoError(err)

	// Then the commit reaches bob's session through the fan-out
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		req.Fail("Timeout: event has never reached the session sink")
	}
	req.Equal(sent.Sequence, timeline.LastSeen())
	req.Len(timeline.Messages(), 1)

	// And bob can decrypt: his grant unwraps to the room content key
	grant, err := keyRepo.GetGrant(room.ID, "bob", 1)
	req.NoError(err)
	req.NotEmpty(grant.WrappedKey)
}
