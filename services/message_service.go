package services

import (
	"log/slog"
	"time"

	"workroom/contract"
	"workroom/domain"
	"workroom/domain/event"
	"workroom/errors"
	"workroom/observability"
	"workroom/repositories"
	"workroom/runtime"

	"github.com/google/uuid"
)

type IMessageService interface {
	SendMessage(cmd domain.SendMessageCommand) (domain.Message, error)
	EditMessage(cmd domain.EditMessageCommand) (domain.Message, error)
	DeleteMessage(cmd domain.DeleteMessageCommand) error
	AddReaction(cmd domain.ReactionCommand) error
	RemoveReaction(cmd domain.ReactionCommand) error
	MarkMessageAsRead(cmd domain.MarkReadCommand) (domain.ReadReceipt, error)
	GetRoomMessages(query domain.GetMessagesQuery) ([]domain.Message, *string, error)
	UnreadCount(roomID uuid.UUID, userID string) (uint64, error)
}

// MessageService owns the append-only message log: sends, edits,
// tombstones, reactions, and read receipts. Sequence-assigning writes
// run under the room's writer lock; events are published before the
// lock releases so fan-out observes commit order.
type MessageService struct {
	rooms        repositories.IRoomRepository
	participants repositories.IParticipantRepository
	messages     repositories.IMessageRepository
	bus          contract.EventBus
	locks        *runtime.LockArena
	monitoring   *observability.Monitoring
	log          *slog.Logger
}

func NewMessageService(
	rooms repositories.IRoomRepository,
	participants repositories.IParticipantRepository,
	messages repositories.IMessageRepository,
	bus contract.EventBus,
	locks *runtime.LockArena,
	monitoring *observability.Monitoring,
	log *slog.Logger) *MessageService {
	return &MessageService{
		rooms:        rooms,
		participants: participants,
		messages:     messages,
		bus:          bus,
		locks:        locks,
		monitoring:   monitoring,
		log:          log,
	}
}

// SendMessage commits the ciphertext with the next per-room sequence
// number. A resubmit carrying a known client token returns the
// originally committed message instead of appending a duplicate.
func (s *MessageService) SendMessage(cmd domain.SendMessageCommand) (domain.Message, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.Message{}, err
	}
	unlock := s.locks.Lock(cmd.RoomID.String())
	defer unlock()

	// Room status and membership are checked under the lock, so an
	// archive or removal racing this send lands before or after the
	// commit, never in between.
	if _, err := loadWritableRoom(s.rooms, cmd.RoomID); err != nil {
		return domain.Message{}, err
	}
	if _, err := activeParticipant(s.participants, cmd.RoomID, cmd.SenderID); err != nil {
		return domain.Message{}, err
	}

	if cmd.ClientToken != "" {
		if existing, err := s.messages.FindByToken(cmd.RoomID, cmd.ClientToken); err != nil {
			return domain.Message{}, err
		} else if existing != nil {
			return *existing, nil
		}
	}

	msg := domain.Message{
		ID:         uuid.New(),
		RoomID:     cmd.RoomID,
		SenderID:   cmd.SenderID,
		Ciphertext: cmd.Ciphertext,
		Nonce:      cmd.Nonce,
		CreatedAt:  time.Now().UTC(),
		Status:     domain.MessageSent,
	}
	committed, err := s.messages.Append(msg, cmd.ClientToken)
	if err != nil {
		return domain.Message{}, err
	}
	s.monitoring.MessageCommitted()
	s.bus.Publish(event.MessageCommitted{Message: committed})
	return committed, nil
}

// EditMessage replaces the ciphertext in place. Only the original
// sender may edit, the room must not be archived, and the sequence
// number never changes.
func (s *MessageService) EditMessage(cmd domain.EditMessageCommand) (domain.Message, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.Message{}, err
	}
	// The unlocked read only resolves the room for the lock key.
	msg, err := s.messages.Get(cmd.MessageID)
	if err != nil {
		return domain.Message{}, err
	}

	unlock := s.locks.Lock(msg.RoomID.String())
	defer unlock()

	if _, err = loadWritableRoom(s.rooms, msg.RoomID); err != nil {
		return domain.Message{}, err
	}
	msg, err = s.messages.Get(cmd.MessageID)
	if err != nil {
		return domain.Message{}, err
	}
	if msg.SenderID != cmd.ActorID {
		return domain.Message{}, errors.ErrForbidden
	}
	if msg.IsTombstone() {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	now := time.Now().UTC()
	msg.Ciphertext = cmd.NewCiphertext
	msg.Nonce = cmd.NewNonce
	msg.EditedAt = &now
	msg.Status = domain.MessageEdited
	if err = s.messages.Update(msg); err != nil {
		return domain.Message{}, err
	}
	s.bus.Publish(event.MessageEdited{Message: msg})
	return msg, nil
}

// DeleteMessage tombstones a message, clearing its ciphertext while
// preserving id and sequence. Allowed for the sender or a room admin,
// on active and archived rooms alike.
func (s *MessageService) DeleteMessage(cmd domain.DeleteMessageCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	msg, err := s.messages.Get(cmd.MessageID)
	if err != nil {
		return err
	}
	if _, err = loadReadableRoom(s.rooms, msg.RoomID); err != nil {
		return err
	}
	if msg.SenderID != cmd.ActorID {
		if _, err = requireAdmin(s.participants, msg.RoomID, cmd.ActorID); err != nil {
			return err
		}
	}

	unlock := s.locks.Lock(msg.RoomID.String())
	defer unlock()

	msg, err = s.messages.Get(cmd.MessageID)
	if err != nil {
		return err
	}
	if msg.IsTombstone() {
		return nil
	}
	if err = s.messages.Update(msg.Tombstone()); err != nil {
		return err
	}
	s.bus.Publish(event.MessageDeleted{
		Room:      msg.RoomID,
		MessageID: msg.ID,
		Sequence:  msg.Sequence,
		DeletedBy: cmd.ActorID,
	})
	return nil
}

// AddReaction stores the (message, user, kind) triple. Adding an
// already-present reaction is a no-op success. Reactions stay
// available on archived rooms.
func (s *MessageService) AddReaction(cmd domain.ReactionCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	msg, err := s.reactableMessage(cmd)
	if err != nil {
		return err
	}
	reaction := domain.Reaction{
		MessageID: cmd.MessageID,
		UserID:    cmd.UserID,
		Kind:      cmd.Kind,
		CreatedAt: time.Now().UTC(),
	}
	added, err := s.messages.AddReaction(msg.RoomID, reaction)
	if err != nil {
		return err
	}
	if added {
		s.bus.Publish(event.ReactionAdded{Room: msg.RoomID, Reaction: reaction})
	}
	return nil
}

// RemoveReaction deletes the triple if present; removing an absent
// reaction is a no-op success.
func (s *MessageService) RemoveReaction(cmd domain.ReactionCommand) error {
	if err := validateCommand(cmd); err != nil {
		return err
	}
	msg, err := s.reactableMessage(cmd)
	if err != nil {
		return err
	}
	removed, err := s.messages.RemoveReaction(msg.RoomID, cmd.MessageID, cmd.UserID, cmd.Kind)
	if err != nil {
		return err
	}
	if removed {
		s.bus.Publish(event.ReactionRemoved{
			Room:      msg.RoomID,
			MessageID: cmd.MessageID,
			UserID:    cmd.UserID,
			Kind:      cmd.Kind,
		})
	}
	return nil
}

func (s *MessageService) reactableMessage(cmd domain.ReactionCommand) (domain.Message, error) {
	msg, err := s.messages.Get(cmd.MessageID)
	if err != nil {
		return domain.Message{}, err
	}
	// A tombstone behaves as missing, matching the edit path.
	if msg.IsTombstone() {
		return domain.Message{}, errors.ErrMessageNotFound
	}
	if _, err = loadReadableRoom(s.rooms, msg.RoomID); err != nil {
		return domain.Message{}, err
	}
	if _, err = activeParticipant(s.participants, msg.RoomID, cmd.UserID); err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// MarkMessageAsRead upserts the read receipt (last write wins) and
// advances the reader's watermark used for unread counts.
func (s *MessageService) MarkMessageAsRead(cmd domain.MarkReadCommand) (domain.ReadReceipt, error) {
	if err := validateCommand(cmd); err != nil {
		return domain.ReadReceipt{}, err
	}
	msg, err := s.messages.Get(cmd.MessageID)
	if err != nil {
		return domain.ReadReceipt{}, err
	}
	if _, err = loadReadableRoom(s.rooms, msg.RoomID); err != nil {
		return domain.ReadReceipt{}, err
	}
	if _, err = activeParticipant(s.participants, msg.RoomID, cmd.UserID); err != nil {
		return domain.ReadReceipt{}, err
	}

	receipt := domain.ReadReceipt{
		RoomID:    msg.RoomID,
		MessageID: msg.ID,
		UserID:    cmd.UserID,
		Sequence:  msg.Sequence,
		ReadAt:    time.Now().UTC(),
	}
	if err = s.messages.UpsertReceipt(receipt); err != nil {
		return domain.ReadReceipt{}, err
	}
	s.bus.Publish(event.MessageRead{
		Room:      msg.RoomID,
		MessageID: msg.ID,
		UserID:    cmd.UserID,
		Sequence:  msg.Sequence,
		ReadAt:    receipt.ReadAt,
	})
	return receipt, nil
}

// GetRoomMessages pages the room's log in sequence order, including
// tombstones so clients can reconcile local caches. A reconnecting
// client resumes from the cursor of its last-known sequence.
func (s *MessageService) GetRoomMessages(query domain.GetMessagesQuery) ([]domain.Message, *string, error) {
	if err := validateCommand(query); err != nil {
		return nil, nil, err
	}
	if _, err := s.rooms.Get(query.RoomID); err != nil {
		return nil, nil, err
	}
	if _, err := activeParticipant(s.participants, query.RoomID, query.RequesterID); err != nil {
		return nil, nil, err
	}
	return s.messages.List(query.RoomID, query.Cursor, query.NewestFirst)
}

// UnreadCount is the number of messages with a sequence number above
// the participant's highest read sequence.
func (s *MessageService) UnreadCount(roomID uuid.UUID, userID string) (uint64, error) {
	if _, err := activeParticipant(s.participants, roomID, userID); err != nil {
		return 0, err
	}
	latest, err := s.messages.LatestSequence(roomID)
	if err != nil {
		return 0, err
	}
	mark, err := s.messages.ReadWatermark(roomID, userID)
	if err != nil {
		return 0, err
	}
	if mark >= latest {
		return 0, nil
	}
	return latest - mark, nil
}
