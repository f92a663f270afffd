package repositories

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"workroom/domain"
	apperrors "workroom/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IKeyRepository interface {
	SaveBundle(bundle domain.EncryptionKeyBundle) (domain.EncryptionKeyBundle, bool, error)
	GetBundle(userID string) (domain.EncryptionKeyBundle, error)
	SaveRoomKey(key domain.RoomKey) error
	CurrentRoomKey(roomID uuid.UUID) (domain.RoomKey, error)
	RoomKeyAt(roomID uuid.UUID, epoch uint32) (domain.RoomKey, error)
	ListRoomKeys(roomID uuid.UUID) ([]domain.RoomKey, error)
	SaveGrant(grant domain.RoomKeyGrant) error
	GetGrant(roomID uuid.UUID, userID string, epoch uint32) (domain.RoomKeyGrant, error)
	ListGrants(roomID uuid.UUID, userID string) ([]domain.RoomKeyGrant, error)
}

type KeyRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewKeyRepository(db *badger.DB, log *slog.Logger) *KeyRepository {
	return &KeyRepository{db: db, log: log}
}

func bundleKey(userID string) []byte {
	return []byte(fmt.Sprintf("kb:%s", userID))
}

// Epoch keys are 10-digit padded so prefix scans list epochs in order.
func roomKeyKey(roomID uuid.UUID, epoch uint32) []byte {
	return []byte(fmt.Sprintf("rk:%s:%010d", roomID, epoch))
}

func roomKeyPrefix(roomID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("rk:%s:", roomID))
}

func currentEpochKey(roomID uuid.UUID) []byte {
	return []byte(fmt.Sprintf("rkcur:%s", roomID))
}

func grantKey(roomID uuid.UUID, userID string, epoch uint32) []byte {
	return []byte(fmt.Sprintf("grant:%s:%s:%010d", roomID, userID, epoch))
}

func grantPrefix(roomID uuid.UUID, userID string) []byte {
	return []byte(fmt.Sprintf("grant:%s:%s:", roomID, userID))
}

// SaveBundle stores the bundle unless one already exists: bundle
// creation is idempotent and first-writer-wins. Returns the stored
// bundle and whether this call created it.
func (r *KeyRepository) SaveBundle(bundle domain.EncryptionKeyBundle) (domain.EncryptionKeyBundle, bool, error) {
	created := false
	stored := bundle
	err := withRetry(r.log, func() error {
		created = false
		stored = bundle
		return r.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(bundleKey(bundle.UserID))
			if err == nil {
				return item.Value(func(value []byte) error {
					return unmarshal(value, &stored)
				})
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			bytes, err := marshal(bundle)
			if err != nil {
				return err
			}
			if err = txn.Set(bundleKey(bundle.UserID), bytes); err != nil {
				return err
			}
			created = true
			return nil
		})
	})
	return stored, created, err
}

func (r *KeyRepository) GetBundle(userID string) (domain.EncryptionKeyBundle, error) {
	var bundle domain.EncryptionKeyBundle
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(bundleKey(userID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return unmarshal(value, &bundle)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.EncryptionKeyBundle{}, apperrors.ErrEncryptionNotReady
	}
	return bundle, err
}

func (r *KeyRepository) SaveRoomKey(key domain.RoomKey) error {
	bytes, err := marshal(key)
	if err != nil {
		return err
	}
	epoch := make([]byte, 4)
	binary.BigEndian.PutUint32(epoch, key.Epoch)
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			if err := txn.Set(roomKeyKey(key.RoomID, key.Epoch), bytes); err != nil {
				return err
			}
			return txn.Set(currentEpochKey(key.RoomID), epoch)
		})
	})
}

func (r *KeyRepository) CurrentRoomKey(roomID uuid.UUID) (domain.RoomKey, error) {
	var epoch uint32
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(currentEpochKey(roomID))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			epoch = binary.BigEndian.Uint32(value)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.RoomKey{}, apperrors.ErrKeyEpochNotFound
	}
	if err != nil {
		return domain.RoomKey{}, err
	}
	return r.RoomKeyAt(roomID, epoch)
}

func (r *KeyRepository) RoomKeyAt(roomID uuid.UUID, epoch uint32) (domain.RoomKey, error) {
	var key domain.RoomKey
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(roomKeyKey(roomID, epoch))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return unmarshal(value, &key)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.RoomKey{}, apperrors.ErrKeyEpochNotFound
	}
	return key, err
}

func (r *KeyRepository) ListRoomKeys(roomID uuid.UUID) ([]domain.RoomKey, error) {
	var keys []domain.RoomKey
	prefix := roomKeyPrefix(roomID)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var key domain.RoomKey
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &key)
			}); err != nil {
				return err
			}
			keys = append(keys, key)
		}
		return nil
	})
	return keys, err
}

func (r *KeyRepository) SaveGrant(grant domain.RoomKeyGrant) error {
	bytes, err := marshal(grant)
	if err != nil {
		return err
	}
	return withRetry(r.log, func() error {
		return r.db.Update(func(txn *badger.Txn) error {
			return txn.Set(grantKey(grant.RoomID, grant.UserID, grant.Epoch), bytes)
		})
	})
}

func (r *KeyRepository) GetGrant(roomID uuid.UUID, userID string, epoch uint32) (domain.RoomKeyGrant, error) {
	var grant domain.RoomKeyGrant
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(grantKey(roomID, userID, epoch))
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return unmarshal(value, &grant)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return domain.RoomKeyGrant{}, apperrors.ErrKeyEpochNotFound
	}
	return grant, err
}

func (r *KeyRepository) ListGrants(roomID uuid.UUID, userID string) ([]domain.RoomKeyGrant, error) {
	var grants []domain.RoomKeyGrant
	prefix := grantPrefix(roomID, userID)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var grant domain.RoomKeyGrant
			if err := it.Item().Value(func(value []byte) error {
				return unmarshal(value, &grant)
			}); err != nil {
				return err
			}
			grants = append(grants, grant)
		}
		return nil
	})
	return grants, err
}
