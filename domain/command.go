package domain

import (
	"github.com/google/uuid"
)

// Commands are the typed request contracts of the messaging core.
// They are validated at the service boundary before touching state.

type SendMessageCommand struct {
	RoomID     uuid.UUID `validate:"required"`
	SenderID   string    `validate:"required"`
	Ciphertext []byte    `validate:"required"`
	Nonce      []byte    `validate:"required"`
	// ClientToken deduplicates resubmits after a retryable failure.
	ClientToken string
}

type EditMessageCommand struct {
	MessageID     uuid.UUID `validate:"required"`
	ActorID       string    `validate:"required"`
	NewCiphertext []byte    `validate:"required"`
	NewNonce      []byte    `validate:"required"`
}

type DeleteMessageCommand struct {
	MessageID uuid.UUID `validate:"required"`
	ActorID   string    `validate:"required"`
}

type ReactionCommand struct {
	MessageID uuid.UUID `validate:"required"`
	UserID    string    `validate:"required"`
	Kind      string    `validate:"required,max=64"`
}

type MarkReadCommand struct {
	MessageID uuid.UUID `validate:"required"`
	UserID    string    `validate:"required"`
}

// GetMessagesQuery pages through a room's log in sequence order.
// A nil cursor starts from the extremity implied by NewestFirst.
type GetMessagesQuery struct {
	RoomID      uuid.UUID `validate:"required"`
	RequesterID string    `validate:"required"`
	Cursor      *string
	NewestFirst bool
}

type CreateRoomCommand struct {
	WorkspaceID string   `validate:"required"`
	CreatorID   string   `validate:"required"`
	Kind        RoomKind `validate:"required"`
	Name        string   `validate:"required,max=120"`
}

type AddParticipantsCommand struct {
	RoomID  uuid.UUID `validate:"required"`
	ActorID string    `validate:"required"`
	UserIDs []string  `validate:"required,min=1,dive,required"`
}

type RemoveParticipantCommand struct {
	RoomID   uuid.UUID `validate:"required"`
	ActorID  string    `validate:"required"`
	TargetID string    `validate:"required"`
}

type AcceptInvitationCommand struct {
	InvitationID uuid.UUID `validate:"required"`
	UserID       string    `validate:"required"`
}

type RevokeInvitationCommand struct {
	InvitationID uuid.UUID `validate:"required"`
	ActorID      string    `validate:"required"`
}
