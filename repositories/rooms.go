package repositories

import (
	"errors"
	"fmt"
	"log/slog"

	"workroom/domain"
	apperrors "workroom/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IRoomRepository interface {
	Save(room domain.Room) error
	Get(id uuid.UUID) (domain.Room, error)
	SetStatus(id uuid.UUID, status domain.RoomStatus) (domain.Room, error)
	SaveGeneralRoom(room domain.Room) (domain.Room, bool, error)
}

type RoomRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewRoomRepository(db *badger.DB, log *slog.Logger) *RoomRepository {
	return &RoomRepository{db: db, log: log}
}

func roomKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("room:%s", id))
}

// generalIndexKey maps a workspace to its single general room.
func generalIndexKey(workspaceID string) []byte {
	return []byte(fmt.Sprintf("wsgen:%s", workspaceID))
}

func (r *RoomRepository) Save(room domain.Room) error {
	bytes, err := marshal(room)
	if err != nil {
		return err
	}
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			return txn.Set(roomKey(room.ID), bytes)
		})
	})
}

func (r *RoomRepository) Get(id uuid.UUID) (domain.Room, error) {
	var room domain.Room
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return unmarshal(value, &room)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Room{}, apperrors.ErrRoomNotFound
	}
	return room, err
}

func (r *RoomRepository) SetStatus(id uuid.UUID, status domain.RoomStatus) (domain.Room, error) {
	var room domain.Room
	err := withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(roomKey(id))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return apperrors.ErrRoomNotFound
			}
			if err != nil {
				return err
			}
			if err = item.Value(func(value []byte) error {
				return unmarshal(value, &room)
			}); err != nil {
				return err
			}
			room.Status = status
			bytes, err := marshal(room)
			if err != nil {
				return err
			}
			return txn.Set(roomKey(id), bytes)
		})
	})
	return room, err
}

// SaveGeneralRoom creates the workspace's general room behind a
// check-and-set on the workspace index. Concurrent callers converge:
// the loser gets the winner's room back with created=false.
func (r *RoomRepository) SaveGeneralRoom(room domain.Room) (domain.Room, bool, error) {
	created := false
	winner := room
	err := withRetry(r.log, func() error {
		created = false
		winner = room
		return r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(generalIndexKey(room.WorkspaceID))
			if err == nil {
				var existingID uuid.UUID
				if err = item.Value(func(value []byte) error {
					existingID, err = uuid.FromBytes(value)
					return err
				}); err != nil {
					return err
				}
				existing, err := txn.Get(roomKey(existingID))
				if err != nil {
					return err
				}
				return existing.Value(func(value []byte) error {
					return unmarshal(value, &winner)
				})
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			bytes, err := marshal(room)
			if err != nil {
				return err
			}
			if err = txn.Set(roomKey(room.ID), bytes); err != nil {
				return err
			}
			id := room.ID
			if err = txn.Set(generalIndexKey(room.WorkspaceID), id[:]); err != nil {
				return err
			}
			created = true
			return nil
		})
	})
	return winner, created, err
}
