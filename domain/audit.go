package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry records a destructive or membership-changing operation.
type AuditEntry struct {
	RoomID  uuid.UUID
	Action  string
	ActorID string
	Detail  string
	At      time.Time
}
