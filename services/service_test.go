package services

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"workroom/domain"
	"workroom/observability"
	"workroom/repositories"
	"workroom/runtime"
)

// testCore wires the services against a real store, the way the
// composition root does, so concurrency properties are exercised for
// real instead of being mocked away.
type testCore struct {
	rooms        *RoomService
	participants *ParticipantService
	messages     *MessageService
	encryption   *EncryptionService

	bus             *runtime.Bus
	jobs            *runtime.Jobs
	locks           *runtime.LockArena
	roomRepo        *repositories.RoomRepository
	messageRepo     *repositories.MessageRepository
	participantRepo *repositories.ParticipantRepository
	keyRepo         *repositories.KeyRepository
}

func newTestCore(t *testing.T, invitationTTL time.Duration) *testCore {
	t.Helper()
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	req.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	log := slog.Default()
	monitoring := observability.NewMonitoring()
	locks := runtime.NewLockArena()
	bus := runtime.NewBus(log, 256, monitoring)
	jobs := runtime.NewJobs(log, monitoring)

	roomRepo := repositories.NewRoomRepository(db, log)
	participantRepo := repositories.NewParticipantRepository(db, log)
	messageRepo := repositories.NewMessageRepository(db, log, nil)
	keyRepo := repositories.NewKeyRepository(db, log)

	encryption := NewEncryptionService(keyRepo, log)
	return &testCore{
		rooms: NewRoomService(
			roomRepo, participantRepo, messageRepo, encryption, bus, jobs, locks, 3, log),
		participants: NewParticipantService(
			roomRepo, participantRepo, encryption, bus, locks, invitationTTL, log),
		messages: NewMessageService(
			roomRepo, participantRepo, messageRepo, bus, locks, monitoring, log),
		encryption:      encryption,
		bus:             bus,
		jobs:            jobs,
		locks:           locks,
		roomRepo:        roomRepo,
		messageRepo:     messageRepo,
		participantRepo: participantRepo,
		keyRepo:         keyRepo,
	}
}

// initUser bootstraps a user's encryption bundle so key grants work.
func (c *testCore) initUser(t *testing.T, userID string) {
	t.Helper()
	_, err := c.encryption.InitializeUserEncryption(userID, userID+"-credential")
	require.NoError(t, err)
}

// createRoom creates a group room administered by creator, with the
// given extra users joined as active members.
func (c *testCore) createRoom(t *testing.T, creator string, members ...string) domain.Room {
	t.Helper()
	req := require.New(t)
	c.initUser(t, creator)
	room, err := c.rooms.CreateRoom(domain.CreateRoomCommand{
		WorkspaceID: "acme",
		CreatorID:   creator,
		Kind:        domain.RoomKindGroup,
		Name:        "project-x",
	})
	req.NoError(err)
	for _, member := range members {
		c.initUser(t, member)
		result, err := c.participants.AddParticipants(domain.AddParticipantsCommand{
			RoomID:  room.ID,
			ActorID: creator,
			UserIDs: []string{member},
		})
		req.NoError(err)
		req.Len(result.Invited, 1)
		_, err = c.participants.AcceptRoomInvitation(domain.AcceptInvitationCommand{
			InvitationID: result.Invited[0].ID,
			UserID:       member,
		})
		req.NoError(err)
	}
	return room
}

func (c *testCore) send(t *testing.T, room domain.Room, sender, token string) domain.Message {
	t.Helper()
	msg, err := c.messages.SendMessage(domain.SendMessageCommand{
		RoomID:      room.ID,
		SenderID:    sender,
		Ciphertext:  []byte("sealed payload"),
		Nonce:       []byte("nonce"),
		ClientToken: token,
	})
	require.NoError(t, err)
	return msg
}
