package services

import (
	"workroom/domain"
	"workroom/errors"
	"workroom/repositories"

	"github.com/google/uuid"
)

// loadWritableRoom fetches a room and rejects it for mutation when
// archived or deleted.
func loadWritableRoom(rooms repositories.IRoomRepository, roomID uuid.UUID) (domain.Room, error) {
	room, err := rooms.Get(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	switch room.Status {
	case domain.RoomStatusArchived:
		return domain.Room{}, errors.ErrRoomArchived
	case domain.RoomStatusDeleted:
		return domain.Room{}, errors.ErrRoomDeleted
	}
	return room, nil
}

// loadReadableRoom fetches a room for read-side operations, which
// stay allowed on archived rooms.
func loadReadableRoom(rooms repositories.IRoomRepository, roomID uuid.UUID) (domain.Room, error) {
	room, err := rooms.Get(roomID)
	if err != nil {
		return domain.Room{}, err
	}
	if room.Status == domain.RoomStatusDeleted {
		return domain.Room{}, errors.ErrRoomDeleted
	}
	return room, nil
}

func activeParticipant(participants repositories.IParticipantRepository, roomID uuid.UUID, userID string) (domain.Participant, error) {
	p, err := participants.Get(roomID, userID)
	if err != nil {
		return domain.Participant{}, err
	}
	if !p.IsActive() {
		return domain.Participant{}, errors.ErrNotParticipant
	}
	return p, nil
}

func requireAdmin(participants repositories.IParticipantRepository, roomID uuid.UUID, userID string) (domain.Participant, error) {
	p, err := activeParticipant(participants, roomID, userID)
	if err != nil {
		return domain.Participant{}, err
	}
	if p.Role != domain.RoleAdmin {
		return domain.Participant{}, errors.ErrForbidden
	}
	return p, nil
}
