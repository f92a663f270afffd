package services

import (
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"workroom/errors"
	"workroom/keywrap"
	"workroom/repositories"
)

func newEncryptionService(t *testing.T) (*EncryptionService, *repositories.KeyRepository) {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).
		WithLoggingLevel(badger.ERROR).
		WithValueLogFileSize(16 << 20))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	keys := repositories.NewKeyRepository(db, slog.Default())
	return NewEncryptionService(keys, slog.Default()), keys
}

func TestInitializeUserEncryption_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	svc, _ := newEncryptionService(t)

	req.False(svc.HasBundle("alice"))

	first, err := svc.InitializeUserEncryption("alice", "passphrase")
	req.NoError(err)
	req.NotEmpty(first.PublicKey)
	req.NotEmpty(first.EncryptedPrivateKey)
	req.True(svc.HasBundle("alice"))

	// A second call returns the same bundle instead of minting new keys
	second, err := svc.InitializeUserEncryption("alice", "passphrase")
	req.NoError(err)
	req.Equal(first.PublicKey, second.PublicKey)
	req.Equal(first.EncryptedPrivateKey, second.EncryptedPrivateKey)
}

func TestInitializeUserEncryption_Private_Key_Opens_With_The_Credential(t *testing.T) {
	req := require.New(t)
	svc, _ := newEncryptionService(t)

	bundle, err := svc.InitializeUserEncryption("alice", "passphrase")
	req.NoError(err)

	// The client-side path: derive the secret, open the private key
	secret := keywrap.DeriveSecretKey("passphrase", bundle.Salt)
	private, err := keywrap.OpenPrivateKey(secret, bundle.EncryptedPrivateKey, bundle.PrivateKeyNonce)
	req.NoError(err)
	req.Len(private, 32)

	wrong := keywrap.DeriveSecretKey("not the passphrase", bundle.Salt)
	_, err = keywrap.OpenPrivateKey(wrong, bundle.EncryptedPrivateKey, bundle.PrivateKeyNonce)
	req.Error(err)
}

func TestEnsureRoomKey_Creates_Epoch_One_Once(t *testing.T) {
	req := require.New(t)
	svc, _ := newEncryptionService(t)
	roomID := uuid.New()

	first, err := svc.EnsureRoomKey(roomID)
	req.NoError(err)
	req.Equal(uint32(1), first.Epoch)

	second, err := svc.EnsureRoomKey(roomID)
	req.NoError(err)
	req.Equal(first.Epoch, second.Epoch)
	req.Equal(first.Key, second.Key)
}

func TestRotateRoomKey_Advances_Epochs_And_Keeps_History(t *testing.T) {
	req := require.New(t)
	svc, keys := newEncryptionService(t)
	roomID := uuid.New()

	first, err := svc.EnsureRoomKey(roomID)
	req.NoError(err)
	rotated, err := svc.RotateRoomKey(roomID)
	req.NoError(err)

	req.Equal(uint32(2), rotated.Epoch)
	req.NotEqual(first.Key, rotated.Key)

	// The old epoch stays addressable for old messages
	old, err := keys.RoomKeyAt(roomID, 1)
	req.NoError(err)
	req.Equal(first.Key, old.Key)
}

func TestGrantRoomKey_Wraps_For_The_Recipient_Only(t *testing.T) {
	req := require.New(t)
	svc, _ := newEncryptionService(t)
	roomID := uuid.New()

	// No grant without an initialized bundle
	_, err := svc.EnsureRoomKey(roomID)
	req.NoError(err)
	_, err = svc.GrantRoomKey(roomID, "alice")
	req.ErrorIs(err, errors.ErrEncryptionNotReady)

	bundle, err := svc.InitializeUserEncryption("alice", "passphrase")
	req.NoError(err)
	grant, err := svc.GrantRoomKey(roomID, "alice")
	req.NoError(err)

	// The recipient's private key unwraps the grant to the room key
	secret := keywrap.DeriveSecretKey("passphrase", bundle.Salt)
	private, err := keywrap.OpenPrivateKey(secret, bundle.EncryptedPrivateKey, bundle.PrivateKeyNonce)
	req.NoError(err)
	roomKey, err := keywrap.UnwrapKey(private, grant.Ephemeral, grant.WrappedKey)
	req.NoError(err)

	current, err := svc.EnsureRoomKey(roomID)
	req.NoError(err)
	req.Equal(current.Key, roomKey)
}

func TestRewrapHistory_Grants_Every_Epoch(t *testing.T) {
	req := require.New(t)
	svc, keys := newEncryptionService(t)
	roomID := uuid.New()

	_, err := svc.EnsureRoomKey(roomID)
	req.NoError(err)
	_, err = svc.RotateRoomKey(roomID)
	req.NoError(err)
	_, err = svc.RotateRoomKey(roomID)
	req.NoError(err)

	_, err = svc.InitializeUserEncryption("late-joiner", "passphrase")
	req.NoError(err)

	// A plain grant covers only the current epoch
	_, err = svc.GrantRoomKey(roomID, "late-joiner")
	req.NoError(err)
	_, err = keys.GetGrant(roomID, "late-joiner", 1)
	req.ErrorIs(err, errors.ErrKeyEpochNotFound)

	// The explicit re-wrap covers all of them
	grants, err := svc.RewrapHistory(roomID, "late-joiner")
	req.NoError(err)
	req.Len(grants, 3)
	for epoch := uint32(1); epoch <= 3; epoch++ {
		_, err = keys.GetGrant(roomID, "late-joiner", epoch)
		req.NoError(err)
	}
}
