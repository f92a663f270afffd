package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageStatus string

const (
	MessageSent    MessageStatus = "sent"
	MessageEdited  MessageStatus = "edited"
	MessageDeleted MessageStatus = "deleted"
)

// Message is a committed room message. Content is opaque ciphertext:
// the server never holds the plaintext or the unwrapped room key.
// Sequence numbers are strictly increasing and gapless per room.
type Message struct {
	ID         uuid.UUID
	RoomID     uuid.UUID
	SenderID   string
	Ciphertext []byte
	Nonce      []byte
	Sequence   uint64
	CreatedAt  time.Time
	EditedAt   *time.Time
	Status     MessageStatus
}

// Tombstone clears the ciphertext but keeps id and sequence so
// clients can reconcile local caches.
func (m Message) Tombstone() Message {
	m.Ciphertext = nil
	m.Nonce = nil
	m.Status = MessageDeleted
	return m
}

func (m Message) IsTombstone() bool {
	return m.Status == MessageDeleted
}
