package services

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"workroom/domain"
	apperrors "workroom/errors"
	"workroom/keywrap"
	"workroom/repositories"

	"github.com/google/uuid"
)

type IEncryptionService interface {
	InitializeUserEncryption(userID, secret string) (domain.EncryptionKeyBundle, error)
	EnsureRoomKey(roomID uuid.UUID) (domain.RoomKey, error)
	RotateRoomKey(roomID uuid.UUID) (domain.RoomKey, error)
	GrantRoomKey(roomID uuid.UUID, userID string) (domain.RoomKeyGrant, error)
	RewrapHistory(roomID uuid.UUID, userID string) ([]domain.RoomKeyGrant, error)
	HasBundle(userID string) bool
}

// EncryptionService owns per-user key bundles and per-room key
// epochs. Message payloads are opaque ciphertext to this service:
// it only generates, wraps, and stores keys. Callers serialize
// room-key operations under the room's writer lock.
type EncryptionService struct {
	keys repositories.IKeyRepository
	log  *slog.Logger
}

func NewEncryptionService(keys repositories.IKeyRepository, log *slog.Logger) *EncryptionService {
	return &EncryptionService{keys: keys, log: log}
}

// InitializeUserEncryption is idempotent: an existing bundle is
// returned unchanged. Otherwise a fresh X25519 pair is generated, the
// public key stored plainly and the private key sealed under a secret
// derived from the user's credential. The credential and the derived
// secret are never persisted.
func (s *EncryptionService) InitializeUserEncryption(userID, secret string) (domain.EncryptionKeyBundle, error) {
	if existing, err := s.keys.GetBundle(userID); err == nil {
		return existing, nil
	} else if !errors.Is(err, apperrors.ErrEncryptionNotReady) {
		return domain.EncryptionKeyBundle{}, err
	}

	salt, err := keywrap.NewSalt()
	if err != nil {
		return domain.EncryptionKeyBundle{}, err
	}
	pair, err := keywrap.GenerateKeyPair()
	if err != nil {
		return domain.EncryptionKeyBundle{}, err
	}
	sealed, nonce, err := keywrap.SealPrivateKey(keywrap.DeriveSecretKey(secret, salt), pair.Private)
	if err != nil {
		return domain.EncryptionKeyBundle{}, err
	}

	bundle := domain.EncryptionKeyBundle{
		UserID:              userID,
		PublicKey:           pair.Public,
		EncryptedPrivateKey: sealed,
		PrivateKeyNonce:     nonce,
		Salt:                salt,
		InitializedAt:       time.Now().UTC(),
	}
	// First writer wins under concurrent initialization.
	stored, created, err := s.keys.SaveBundle(bundle)
	if err != nil {
		return domain.EncryptionKeyBundle{}, err
	}
	if created {
		s.log.Info(fmt.Sprintf("Encryption initialized for user %s", userID))
	}
	return stored, nil
}

func (s *EncryptionService) HasBundle(userID string) bool {
	_, err := s.keys.GetBundle(userID)
	return err == nil
}

// EnsureRoomKey returns the room's current key epoch, creating epoch
// 1 for a new room.
func (s *EncryptionService) EnsureRoomKey(roomID uuid.UUID) (domain.RoomKey, error) {
	current, err := s.keys.CurrentRoomKey(roomID)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, apperrors.ErrKeyEpochNotFound) {
		return domain.RoomKey{}, err
	}
	return s.newEpoch(roomID, 1)
}

// RotateRoomKey advances the room to a new key epoch. Grants for the
// old epoch stay valid for old messages; future messages require a
// grant for the new epoch.
func (s *EncryptionService) RotateRoomKey(roomID uuid.UUID) (domain.RoomKey, error) {
	epoch := uint32(1)
	current, err := s.keys.CurrentRoomKey(roomID)
	switch {
	case err == nil:
		epoch = current.Epoch + 1
	case !errors.Is(err, apperrors.ErrKeyEpochNotFound):
		return domain.RoomKey{}, err
	}
	return s.newEpoch(roomID, epoch)
}

func (s *EncryptionService) newEpoch(roomID uuid.UUID, epoch uint32) (domain.RoomKey, error) {
	key, err := keywrap.NewRoomKey()
	if err != nil {
		return domain.RoomKey{}, err
	}
	roomKey := domain.RoomKey{
		RoomID:    roomID,
		Epoch:     epoch,
		Key:       key,
		CreatedAt: time.Now().UTC(),
	}
	if err = s.keys.SaveRoomKey(roomKey); err != nil {
		return domain.RoomKey{}, err
	}
	s.log.Debug(fmt.Sprintf("Room %s advanced to key epoch %d", roomID, epoch))
	return roomKey, nil
}

// GrantRoomKey wraps the room's current key epoch under the
// recipient's public key. Fails when the recipient has not
// initialized encryption.
func (s *EncryptionService) GrantRoomKey(roomID uuid.UUID, userID string) (domain.RoomKeyGrant, error) {
	bundle, err := s.keys.GetBundle(userID)
	if err != nil {
		return domain.RoomKeyGrant{}, err
	}
	current, err := s.keys.CurrentRoomKey(roomID)
	if err != nil {
		return domain.RoomKeyGrant{}, err
	}
	return s.grantEpoch(bundle, current)
}

// RewrapHistory wraps every key epoch of the room for the user. Only
// an admin-invoked operation reaches this: late joiners receive past
// epochs exclusively through an explicit re-wrap.
func (s *EncryptionService) RewrapHistory(roomID uuid.UUID, userID string) ([]domain.RoomKeyGrant, error) {
	bundle, err := s.keys.GetBundle(userID)
	if err != nil {
		return nil, err
	}
	epochs, err := s.keys.ListRoomKeys(roomID)
	if err != nil {
		return nil, err
	}
	grants := make([]domain.RoomKeyGrant, 0, len(epochs))
	for _, roomKey := range epochs {
		grant, err := s.grantEpoch(bundle, roomKey)
		if err != nil {
			return nil, err
		}
		grants = append(grants, grant)
	}
	return grants, nil
}

func (s *EncryptionService) grantEpoch(bundle domain.EncryptionKeyBundle, roomKey domain.RoomKey) (domain.RoomKeyGrant, error) {
	ephemeral, box, err := keywrap.WrapKey(bundle.PublicKey, roomKey.Key)
	if err != nil {
		return domain.RoomKeyGrant{}, err
	}
	grant := domain.RoomKeyGrant{
		RoomID:     roomKey.RoomID,
		UserID:     bundle.UserID,
		Epoch:      roomKey.Epoch,
		Algorithm:  domain.WrapX25519HKDFChaCha20,
		Ephemeral:  ephemeral,
		WrappedKey: box,
		GrantedAt:  time.Now().UTC(),
	}
	if err = s.keys.SaveGrant(grant); err != nil {
		return domain.RoomKeyGrant{}, err
	}
	return grant, nil
}
