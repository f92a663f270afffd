package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
	RoleGuest     Role = "guest"
)

type ParticipantStatus string

const (
	ParticipantInvited ParticipantStatus = "invited"
	ParticipantActive  ParticipantStatus = "active"
	ParticipantRemoved ParticipantStatus = "removed"
)

// Participant is a user's membership record in a room.
// The (RoomID, UserID) pair is unique.
type Participant struct {
	RoomID    uuid.UUID
	UserID    string
	Role      Role
	Status    ParticipantStatus
	JoinedAt  time.Time
	InvitedBy string
}

func (p Participant) IsActive() bool {
	return p.Status == ParticipantActive
}

// CanInvite Only admins and moderators may add participants.
func (r Role) CanInvite() bool {
	return r == RoleAdmin || r == RoleModerator
}
