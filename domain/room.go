// Package domain contains core concepts of the room-messaging system.
// No runtime, network, or storage logic should be added here.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type RoomKind string

const (
	RoomKindGeneral RoomKind = "general"
	RoomKindGroup   RoomKind = "group"
	RoomKindDirect  RoomKind = "direct"
)

type RoomStatus string

const (
	RoomStatusActive   RoomStatus = "active"
	RoomStatusArchived RoomStatus = "archived"
	RoomStatusDeleted  RoomStatus = "deleted"
)

// DirectRoomCapacity Direct rooms hold exactly two participants.
const DirectRoomCapacity = 2

type Room struct {
	ID          uuid.UUID
	WorkspaceID string
	Kind        RoomKind
	Name        string
	Status      RoomStatus
	CreatedAt   time.Time
}

// AcceptsMessages An archived or deleted room rejects new messages.
func (r Room) AcceptsMessages() bool {
	return r.Status == RoomStatusActive
}

// AcceptsParticipants An archived or deleted room rejects new participants.
func (r Room) AcceptsParticipants() bool {
	return r.Status == RoomStatusActive
}

func ValidRoomKind(kind RoomKind) bool {
	switch kind {
	case RoomKindGeneral, RoomKindGroup, RoomKindDirect:
		return true
	}
	return false
}
