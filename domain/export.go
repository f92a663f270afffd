package domain

import (
	"time"

	"github.com/google/uuid"
)

// RoomExport is a consistent snapshot of a room as of Watermark:
// every message with a sequence number at or below the watermark,
// with its reactions and read receipts, plus the participant list.
// Ciphertext is exported as stored; the exporter does not decrypt.
type RoomExport struct {
	RoomID       uuid.UUID
	Watermark    uint64
	ExportedAt   time.Time
	Room         Room
	Participants []Participant
	Messages     []Message
	Reactions    []Reaction
	Receipts     []ReadReceipt
}
