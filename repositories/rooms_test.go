package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"workroom/domain"
	apperrors "workroom/errors"
)

func newGroupRoom() domain.Room {
	return domain.Room{
		ID:          uuid.New(),
		WorkspaceID: "acme",
		Kind:        domain.RoomKindGroup,
		Name:        "project-x",
		Status:      domain.RoomStatusActive,
		CreatedAt:   time.Now().UTC(),
	}
}

func Test_Save_And_Get_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewRoomRepository(db, slog.Default())
	room := newGroupRoom()

	req.NoError(repository.Save(room))

	fetched, err := repository.Get(room.ID)
	req.NoError(err)
	req.Equal(room.ID, fetched.ID)
	req.Equal(domain.RoomKindGroup, fetched.Kind)

	_, err = repository.Get(uuid.New())
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func Test_SetStatus_Transitions_Room(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewRoomRepository(db, slog.Default())
	room := newGroupRoom()
	req.NoError(repository.Save(room))

	archived, err := repository.SetStatus(room.ID, domain.RoomStatusArchived)
	req.NoError(err)
	req.Equal(domain.RoomStatusArchived, archived.Status)
	req.False(archived.AcceptsMessages())

	_, err = repository.SetStatus(uuid.New(), domain.RoomStatusArchived)
	req.ErrorIs(err, apperrors.ErrRoomNotFound)
}

func Test_SaveGeneralRoom_Is_Unique_Per_Workspace(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewRoomRepository(db, slog.Default())

	first := newGroupRoom()
	first.Kind = domain.RoomKindGeneral

	// First caller creates the room
	winner, created, err := repository.SaveGeneralRoom(first)
	req.NoError(err)
	req.True(created)
	req.Equal(first.ID, winner.ID)

	// Second caller for the same workspace gets the existing room back
	second := newGroupRoom()
	second.Kind = domain.RoomKindGeneral
	winner, created, err = repository.SaveGeneralRoom(second)
	req.NoError(err)
	req.False(created)
	req.Equal(first.ID, winner.ID)

	// A different workspace gets its own general room
	other := newGroupRoom()
	other.WorkspaceID = "globex"
	other.Kind = domain.RoomKindGeneral
	winner, created, err = repository.SaveGeneralRoom(other)
	req.NoError(err)
	req.True(created)
	req.Equal(other.ID, winner.ID)
}
