package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"workroom/contract"
	"workroom/domain"
	"workroom/domain/event"
	"workroom/errors"
	"workroom/repositories"
	"workroom/runtime"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

const generalRoomName = "general"

type IRoomService interface {
	CreateRoom(cmd domain.CreateRoomCommand) (domain.Room, error)
	EnsureWorkspaceGeneralRoom(workspaceID, userID string) (domain.Room, error)
	ArchiveRoom(roomID uuid.UUID, actorID string) error
	DeleteConversation(ctx context.Context, roomID uuid.UUID, actorID string) (*runtime.Job, error)
	ExportRoomData(ctx context.Context, roomID uuid.UUID, actorID string) (*runtime.Job, error)
}

// RoomService owns room lifecycle: creation, archival, conversation
// deletion, and export. Long operations run as supervised background
// jobs; the triggering request returns a handle, not the outcome.
type RoomService struct {
	rooms           repositories.IRoomRepository
	participants    repositories.IParticipantRepository
	messages        repositories.IMessageRepository
	encryption      IEncryptionService
	bus             contract.EventBus
	jobs            *runtime.Jobs
	locks           *runtime.LockArena
	deleteBatchSize int
	log             *slog.Logger
}

func NewRoomService(
	rooms repositories.IRoomRepository,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	encryption IEncryptionService,
	bus contract.EventBus,
	jobs *runtime.Jobs,
	locks *runtime.LockArena,
	deleteBatchSize int,
	log *slog.Logger) *RoomService {
	return &RoomService{
		rooms:           rooms,
		participants:    participants,
		messages:        messages,
		encryption:      encryption,
		bus:             bus,
		jobs:            jobs,
		locks:           locks,
		deleteBatchSize: deleteBatchSize,
		log:             log,
	}
}

// CreateRoom creates a group or direct room with the creator as its
// admin. General rooms exist once per workspace and only through
// EnsureWorkspaceGeneralRoom.
func (s *RoomService) CreateRoom(cmd domain.CreateRoomCommand) (domain.Room, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.Room{}, err
	}
	if !domain.ValidRoomKind(cmd.Kind) || cmd.Kind == domain.RoomKindGeneral {
		return domain.Room{}, errors.ErrInvalidKind
	}

	now := time.Now().UTC()
	room := domain.Room{
		ID:          uuid.New(),
		WorkspaceID: cmd.WorkspaceID,
		Kind:        cmd.Kind,
		Name:        cmd.Name,
		Status:      domain.RoomStatusActive,
		CreatedAt:   now,
	}

	unlock := s.locks.Lock(room.ID.String())
	defer unlock()

	if err := s.rooms.Save(room); err != nil {
		return domain.Room{}, err
	}
	creator := domain.Participant{
		RoomID:    room.ID,
		UserID:    cmd.CreatorID,
		Role:      domain.RoleAdmin,
		Status:    domain.ParticipantActive,
		JoinedAt:  now,
		InvitedBy: cmd.CreatorID,
	}
	if err := s.participants.Upsert(creator); err != nil {
		return domain.Room{}, err
	}
	if _, err := s.encryption.EnsureRoomKey(room.ID); err != nil {
		return domain.Room{}, err
	}
	if _, err := s.encryption.GrantRoomKey(room.ID, cmd.CreatorID); err != nil {
		return domain.Room{}, err
	}

	s.bus.Publish(event.RoomCreated{Room: room})
	s.bus.Publish(event.ParticipantJoined{Room: room.ID, Participant: creator})
	return room, nil
}

// EnsureWorkspaceGeneralRoom is an idempotent get-or-create. The
// workspace lock plus the check-and-set on the workspace index make
// concurrent callers converge on a single general room; in all cases
// the caller ends up an active participant.
func (s *RoomService) EnsureWorkspaceGeneralRoom(workspaceID, userID string) (domain.Room, error) {
	if workspaceID == "" || userID == "" {
		return domain.Room{}, errors.ErrInvalidCommand
	}
	unlock := s.locks.Lock("ws:" + workspaceID)
	defer unlock()

	now := time.Now().UTC()
	candidate := domain.Room{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		Kind:        domain.RoomKindGeneral,
		Name:        generalRoomName,
		Status:      domain.RoomStatusActive,
		CreatedAt:   now,
	}
	room, created, err := s.rooms.SaveGeneralRoom(candidate)
	if err != nil {
		return domain.Room{}, err
	}

	roomUnlock := s.locks.Lock(room.ID.String())
	defer roomUnlock()

	if created {
		if _, err = s.encryption.EnsureRoomKey(room.ID); err != nil {
			return domain.Room{}, err
		}
		s.bus.Publish(event.RoomCreated{Room: room})
	}

	existing, err := s.participants.Get(room.ID, userID)
	if err == nil && existing.IsActive() {
		return room, nil
	}
	// The workspace general room's first member administers it.
	role := domain.RoleMember
	if created {
		role = domain.RoleAdmin
	}
	participant := domain.Participant{
		RoomID:    room.ID,
		UserID:    userID,
		Role:      role,
		Status:    domain.ParticipantActive,
		JoinedAt:  now,
		InvitedBy: userID,
	}
	if err = s.participants.Upsert(participant); err != nil {
		return domain.Room{}, err
	}
	if s.encryption.HasBundle(userID) {
		if _, err = s.encryption.GrantRoomKey(room.ID, userID); err != nil {
			return domain.Room{}, err
		}
	}
	s.bus.Publish(event.ParticipantJoined{Room: room.ID, Participant: participant})
	return room, nil
}

// ArchiveRoom blocks new messages and participants. Reads, exports,
// reactions, and read receipts stay available.
func (s *RoomService) ArchiveRoom(roomID uuid.UUID, actorID string) error {
	unlock := s.locks.Lock(roomID.String())
	defer unlock()

	if _, err := loadWritableRoom(s.rooms, roomID); err != nil {
		return err
	}
	if _, err := requireAdmin(s.participants, roomID, actorID); err != nil {
		return err
	}
	if _, err := s.rooms.SetStatus(roomID, domain.RoomStatusArchived); err != nil {
		return err
	}
	s.bus.Publish(event.RoomArchived{Room: roomID, ArchivedBy: actorID, At: time.Now().UTC()})
	return nil
}

// DeleteConversation irreversibly tombstones every message in the
// room while preserving the Room and Participant records. The room is
// marked deleted synchronously; tombstoning runs as a cancellable
// background job in atomic batches, so cancellation leaves no message
// half-deleted.
func (s *RoomService) DeleteConversation(ctx context.Context, roomID uuid.UUID, actorID string) (*runtime.Job, error) {
	unlock := s.locks.Lock(roomID.String())
	room, err := s.rooms.Get(roomID)
	if err != nil {
		unlock()
		return nil, err
	}
	if room.Status == domain.RoomStatusDeleted {
		unlock()
		return nil, errors.ErrRoomDeleted
	}
	if _, err = requireAdmin(s.participants, roomID, actorID); err != nil {
		unlock()
		return nil, err
	}
	if _, err = s.rooms.SetStatus(roomID, domain.RoomStatusDeleted); err != nil {
		unlock()
		return nil, err
	}
	unlock()

	job := s.jobs.Launch(ctx, "delete-conversation", func(ctx context.Context, job *runtime.Job) error {
		latest, err := s.messages.LatestSequence(roomID)
		if err != nil {
			return err
		}
		job.SetTotal(int64(latest))

		var afterSeq uint64
		tombstoned := 0
		for {
			if err := ctx.Err(); err != nil {
				s.log.Info(fmt.Sprintf("Delete of room %s cancelled after seq %d", roomID, afterSeq))
				return err
			}
			lastSeq, count, done, err := s.messages.TombstoneBatch(roomID, afterSeq, s.deleteBatchSize)
			if err != nil {
				return err
			}
			tombstoned += count
			job.AddProcessed(int64(lastSeq - afterSeq))
			afterSeq = lastSeq
			if done {
				break
			}
		}
		s.bus.Publish(event.ConversationDeleted{
			Room:       roomID,
			DeletedBy:  actorID,
			Tombstoned: tombstoned,
			At:         time.Now().UTC(),
		})
		return nil
	})
	return job, nil
}

// ExportRoomData snapshots participants, non-deleted messages
// (ciphertext as stored), reactions, and read receipts as of a single
// sequence-number watermark. Writes may continue during the export;
// nothing past the watermark leaks into the snapshot.
func (s *RoomService) ExportRoomData(ctx context.Context, roomID uuid.UUID, actorID string) (*runtime.Job, error) {
	room, err := loadReadableRoom(s.rooms, roomID)
	if err != nil {
		return nil, err
	}
	if _, err = requireAdmin(s.participants, roomID, actorID); err != nil {
		return nil, err
	}
	watermark, err := s.messages.LatestSequence(roomID)
	if err != nil {
		return nil, err
	}

	job := s.jobs.Launch(ctx, "export-room", func(ctx context.Context, job *runtime.Job) error {
		job.SetTotal(int64(watermark))
		export := domain.RoomExport{
			RoomID:     roomID,
			Watermark:  watermark,
			ExportedAt: time.Now().UTC(),
			Room:       room,
		}

		participants, err := s.participants.ListByRoom(roomID)
		if err != nil {
			return err
		}
		export.Participants = participants

		var cursor *string
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			page, next, err := s.messages.List(roomID, cursor, false)
			if err != nil {
				return err
			}
			if len(page) == 0 {
				break
			}
			for _, msg := range page {
				if msg.Sequence > watermark {
					return s.finish(job, export)
				}
				job.AddProcessed(1)
				if msg.IsTombstone() {
					continue
				}
				export.Messages = append(export.Messages, msg)
				reactions, err := s.messages.ListReactions(msg.ID)
				if err != nil {
					return err
				}
				export.Reactions = append(export.Reactions, reactions...)
			}
			cursor = next
		}
		return s.finish(job, export)
	})
	return job, nil
}

func (s *RoomService) finish(job *runtime.Job, export domain.RoomExport) error {
	receipts, err := s.messages.ListReceipts(export.RoomID, export.Watermark)
	if err != nil {
		return err
	}
	export.Receipts = receipts
	export.Participants = lo.Filter(export.Participants, func(p domain.Participant, _ int) bool {
		return p.Status != domain.ParticipantInvited
	})
	job.SetResult(export)
	return nil
}
