package repositories

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workroom/domain"
	apperrors "workroom/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IParticipantRepository interface {
	Upsert(p domain.Participant) error
	Get(roomID uuid.UUID, userID string) (domain.Participant, error)
	ListByRoom(roomID uuid.UUID) ([]domain.Participant, error)
	ActiveAdmins(roomID uuid.UUID) (int, error)
	SaveInvitation(inv domain.Invitation) error
	GetInvitation(id uuid.UUID) (domain.Invitation, error)
	UpdateInvitation(inv domain.Invitation) error
	PendingInvitation(roomID uuid.UUID, userID string) (*domain.Invitation, error)
	CountPendingInvitations(roomID uuid.UUID) (int, error)
	PendingExpiredBefore(now time.Time) ([]domain.Invitation, error)
}

type ParticipantRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewParticipantRepository(db *badger.DB, log *slog.Logger) *ParticipantRepository {
	return &ParticipantRepository{db: db, log: log}
}

func participantKey(roomID uuid.UUID, userID string) []byte {
	return []byte(fmt.Sprintf("part:%s:%s", roomID, userID))
}

func invitationKey(id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("inv:%s", id))
}

// invitationIndexKey prevents duplicate pending invitations for the
// same (room, user) pair.
func invitationIndexKey(roomID uuid.UUID, userID string) []byte {
	return []byte(fmt.Sprintf("invidx:%s:%s", roomID, userID))
}

func (r *ParticipantRepository) Upsert(p domain.Participant) error {
	bytes, err := marshal(p)
	if err != nil {
		return err
	}
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			return txn.Set(participantKey(p.RoomID, p.UserID), bytes)
		})
	})
}

func (r *ParticipantRepository) Get(roomID uuid.UUID, userID string) (domain.Participant, error) {
	var p domain.Participant
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(participantKey(roomID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return unmarshal(value, &p)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Participant{}, apperrors.ErrNotParticipant
	}
	return p, err
}

func (r *ParticipantRepository) ListByRoom(roomID uuid.UUID) ([]domain.Participant, error) {
	var participants []domain.Participant
	prefix := []byte(fmt.Sprintf("part:%s:", roomID))
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p domain.Participant
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &p)
			}); err != nil {
				return err
			}
			participants = append(participants, p)
		}
		return nil
	})
	return participants, err
}

// ActiveAdmins counts the room's active participants holding the
// admin role. Used to protect the at-least-one-admin invariant.
func (r *ParticipantRepository) ActiveAdmins(roomID uuid.UUID) (int, error) {
	participants, err := r.ListByRoom(roomID)
	if err != nil {
		return 0, err
	}
	admins := lo.Filter(participants, func(p domain.Participant, _ int) bool {
		return p.IsActive() && p.Role == domain.RoleAdmin
	})
	return len(admins), nil
}

func (r *ParticipantRepository) SaveInvitation(inv domain.Invitation) error {
	bytes, err := marshal(inv)
	if err != nil {
		return err
	}
	id := inv.ID
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(invitationKey(inv.ID), bytes); err != nil {
				return err
			}
			return txn.Set(invitationIndexKey(inv.RoomID, inv.InviteeID), id[:])
		})
	})
}

func (r *ParticipantRepository) GetInvitation(id uuid.UUID) (domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(invitationKey(id))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return unmarshal(value, &inv)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.Invitation{}, apperrors.ErrInvitationNotFound
	}
	return inv, err
}

func (r *ParticipantRepository) UpdateInvitation(inv domain.Invitation) error {
	bytes, err := marshal(inv)
	if err != nil {
		return err
	}
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(invitationKey(inv.ID), bytes); err != nil {
				return err
			}
			if inv.Status != domain.InvitationPending {
				return txn.Delete(invitationIndexKey(inv.RoomID, inv.InviteeID))
			}
			return nil
		})
	})
}

// PendingInvitation returns the open invitation for (room, user),
// or nil when none exists.
func (r *ParticipantRepository) PendingInvitation(roomID uuid.UUID, userID string) (*domain.Invitation, error) {
	var invID uuid.UUID
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(invitationIndexKey(roomID, userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			invID, err = uuid.FromBytes(value)
			return err
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	inv, err := r.GetInvitation(invID)
	if err != nil {
		return nil, err
	}
	if inv.Status != domain.InvitationPending {
		return nil, nil
	}
	return &inv, nil
}

// CountPendingInvitations counts the room's open invitations. The
// index only holds pending entries; terminal transitions delete them.
func (r *ParticipantRepository) CountPendingInvitations(roomID uuid.UUID) (int, error) {
	count := 0
	prefix := []byte(fmt.Sprintf("invidx:%s:", roomID))
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// PendingExpiredBefore scans for pending invitations whose expiry has
// passed. Only the sweeper uses this; accepts enforce expiry lazily.
func (r *ParticipantRepository) PendingExpiredBefore(now time.Time) ([]domain.Invitation, error) {
	var expired []domain.Invitation
	prefix := []byte("inv:")
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var inv domain.Invitation
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &inv)
			}); err != nil {
				return err
			}
			if inv.Status == domain.InvitationPending && inv.ExpiredAt(now) {
				expired = append(expired, inv)
			}
		}
		return nil
	})
	return expired, err
}
