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

func Test_SaveBundle_First_Writer_Wins(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewKeyRepository(db, slog.Default())

	first := domain.EncryptionKeyBundle{
		UserID:              "alice",
		PublicKey:           []byte("public-1"),
		EncryptedPrivateKey: []byte("sealed-1"),
		PrivateKeyNonce:     []byte("nonce-1"),
		Salt:                []byte("salt-1"),
		InitializedAt:       time.Now().UTC(),
	}
	stored, created, err := repository.SaveBundle(first)
	req.NoError(err)
	req.True(created)
	req.Equal([]byte("public-1"), stored.PublicKey)

	// A second bundle for the same user is discarded
	second := first
	second.PublicKey = []byte("public-2")
	stored, created, err = repository.SaveBundle(second)
	req.NoError(err)
	req.False(created)
	req.Equal([]byte("public-1"), stored.PublicKey)

	fetched, err := repository.GetBundle("alice")
	req.NoError(err)
	req.Equal([]byte("public-1"), fetched.PublicKey)

	_, err = repository.GetBundle("bob")
	req.ErrorIs(err, apperrors.ErrEncryptionNotReady)
}

func Test_RoomKey_Epochs_Advance_And_Stay_Addressable(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewKeyRepository(db, slog.Default())
	roomID := uuid.New()

	_, err := repository.CurrentRoomKey(roomID)
	req.ErrorIs(err, apperrors.ErrKeyEpochNotFound)

	for epoch := uint32(1); epoch <= 3; epoch++ {
		req.NoError(repository.SaveRoomKey(domain.RoomKey{
			RoomID:    roomID,
			Epoch:     epoch,
			Key:       []byte{byte(epoch)},
			CreatedAt: time.Now().UTC(),
		}))
	}

	// The current pointer follows the last save
	current, err := repository.CurrentRoomKey(roomID)
	req.NoError(err)
	req.Equal(uint32(3), current.Epoch)

	// Older epochs remain addressable for history decryption
	old, err := repository.RoomKeyAt(roomID, 1)
	req.NoError(err)
	req.Equal([]byte{1}, old.Key)

	_, err = repository.RoomKeyAt(roomID, 9)
	req.ErrorIs(err, apperrors.ErrKeyEpochNotFound)

	keys, err := repository.ListRoomKeys(roomID)
	req.NoError(err)
	req.Len(keys, 3)
	req.Equal(uint32(1), keys[0].Epoch)
	req.Equal(uint32(3), keys[2].Epoch)
}

func Test_Grants_Are_Scoped_By_User_And_Epoch(t *testing.T) {
	req := require.New(t)
	db := openTestDB(t)
	repository := NewKeyRepository(db, slog.Default())
	roomID := uuid.New()

	grant := func(user string, epoch uint32) domain.RoomKeyGrant {
		return domain.RoomKeyGrant{
			RoomID:     roomID,
			UserID:     user,
			Epoch:      epoch,
			Algorithm:  domain.WrapX25519HKDFChaCha20,
			Ephemeral:  []byte("ephemeral"),
			WrappedKey: []byte("wrapped"),
			GrantedAt:  time.Now().UTC(),
		}
	}
	req.NoError(repository.SaveGrant(grant("alice", 1)))
	req.NoError(repository.SaveGrant(grant("alice", 2)))
	req.NoError(repository.SaveGrant(grant("bob", 2)))

	fetched, err := repository.GetGrant(roomID, "alice", 2)
	req.NoError(err)
	req.Equal(domain.WrapX25519HKDFChaCha20, fetched.Algorithm)

	// Bob never received epoch 1
	_, err = repository.GetGrant(roomID, "bob", 1)
	req.ErrorIs(err, apperrors.ErrKeyEpochNotFound)

	grants, err := repository.ListGrants(roomID, "alice")
	req.NoError(err)
	req.Len(grants, 2)
	req.Equal(uint32(1), grants[0].Epoch)
}
