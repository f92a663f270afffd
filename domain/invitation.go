package domain

import (
	"time"

	"github.com/google/uuid"
)

type InvitationStatus string

// Invitation transitions are monotonic: pending is the only
// non-terminal status, accept is exactly-once.
const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
	InvitationRevoked  InvitationStatus = "revoked"
)

type Invitation struct {
	ID        uuid.UUID
	RoomID    uuid.UUID
	InviteeID string
	InviterID string
	Status    InvitationStatus
	CreatedAt time.Time
	ExpiresAt time.Time
}

func (i Invitation) ExpiredAt(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
