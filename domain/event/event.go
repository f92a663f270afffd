// Package event defines the committed domain events fanned out to
// live sessions. Events are emitted only after the originating write
// has committed, and carry the room id used for fan-out routing.
package event

import (
	"time"

	"workroom/domain"

	"github.com/google/uuid"
)

type DomainEvent interface {
	RoomID() uuid.UUID
}

type MessageCommitted struct {
	Message domain.Message
}

func (e MessageCommitted) RoomID() uuid.UUID { return e.Message.RoomID }

type MessageEdited struct {
	Message domain.Message
}

func (e MessageEdited) RoomID() uuid.UUID { return e.Message.RoomID }

// MessageDeleted carries the tombstone, not the original content.
type MessageDeleted struct {
	Room      uuid.UUID
	MessageID uuid.UUID
	Sequence  uint64
	DeletedBy string
}

func (e MessageDeleted) RoomID() uuid.UUID { return e.Room }

type ReactionAdded struct {
	Room     uuid.UUID
	Reaction domain.Reaction
}

func (e ReactionAdded) RoomID() uuid.UUID { return e.Room }

type ReactionRemoved struct {
	Room      uuid.UUID
	MessageID uuid.UUID
	UserID    string
	Kind      string
}

func (e ReactionRemoved) RoomID() uuid.UUID { return e.Room }

type MessageRead struct {
	Room      uuid.UUID
	MessageID uuid.UUID
	UserID    string
	Sequence  uint64
	ReadAt    time.Time
}

func (e MessageRead) RoomID() uuid.UUID { return e.Room }

type ParticipantInvited struct {
	Room       uuid.UUID
	Invitation domain.Invitation
}

func (e ParticipantInvited) RoomID() uuid.UUID { return e.Room }

type InvitationRevoked struct {
	Room         uuid.UUID
	InvitationID uuid.UUID
	InviteeID    string
	RevokedBy    string
}

func (e InvitationRevoked) RoomID() uuid.UUID { return e.Room }

type ParticipantJoined struct {
	Room        uuid.UUID
	Participant domain.Participant
}

func (e ParticipantJoined) RoomID() uuid.UUID { return e.Room }

type ParticipantRemoved struct {
	Room      uuid.UUID
	UserID    string
	RemovedBy string
}

func (e ParticipantRemoved) RoomID() uuid.UUID { return e.Room }

type RoomCreated struct {
	Room domain.Room
}

func (e RoomCreated) RoomID() uuid.UUID { return e.Room.ID }

type RoomArchived struct {
	Room       uuid.UUID
	ArchivedBy string
	At         time.Time
}

func (e RoomArchived) RoomID() uuid.UUID { return e.Room }

// ConversationDeleted is emitted once the tombstoning job finishes.
type ConversationDeleted struct {
	Room       uuid.UUID
	DeletedBy  string
	Tombstoned int
	At         time.Time
}

func (e ConversationDeleted) RoomID() uuid.UUID { return e.Room }

type RoomKeyRotated struct {
	Room  uuid.UUID
	Epoch uint32
}

func (e RoomKeyRotated) RoomID() uuid.UUID { return e.Room }
