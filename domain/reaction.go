package domain

import (
	"time"

	"github.com/google/uuid"
)

// Reaction is unique per (MessageID, UserID, Kind) triple.
// Adding an already-present triple is a no-op, not an error.
type Reaction struct {
	MessageID uuid.UUID
	UserID    string
	Kind      string
	CreatedAt time.Time
}

// ReadReceipt records that a user has read a message.
// Last write wins on ReadAt.
type ReadReceipt struct {
	RoomID    uuid.UUID
	MessageID uuid.UUID
	UserID    string
	Sequence  uint64
	ReadAt    time.Time
}
