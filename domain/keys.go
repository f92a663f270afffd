package domain

import (
	"time"

	"github.com/google/uuid"
)

// WrapAlgorithm tags the scheme a room key was wrapped with, so the
// grant schema survives future algorithm rotation.
type WrapAlgorithm string

const (
	WrapX25519HKDFChaCha20 WrapAlgorithm = "x25519-hkdf-chacha20poly1305"
)

// EncryptionKeyBundle holds a user's asymmetric key material.
// The private key is encrypted under a secret derived from the user's
// credentials; the server never persists that secret in plaintext.
// At most one bundle exists per user.
type EncryptionKeyBundle struct {
	UserID              string
	PublicKey           []byte
	EncryptedPrivateKey []byte
	PrivateKeyNonce     []byte
	Salt                []byte
	InitializedAt       time.Time
}

// RoomKey is one epoch of a room's symmetric content key.
// Epochs start at 1 and advance on rotation.
type RoomKey struct {
	RoomID    uuid.UUID
	Epoch     uint32
	Key       []byte
	CreatedAt time.Time
}

// RoomKeyGrant is a room key epoch wrapped for one participant.
// Only holders of a grant for an epoch can decrypt its messages;
// late joiners receive older epochs only through an explicit re-wrap.
type RoomKeyGrant struct {
	RoomID     uuid.UUID
	UserID     string
	Epoch      uint32
	Algorithm  WrapAlgorithm
	Ephemeral  []byte
	WrappedKey []byte
	GrantedAt  time.Time
}
