package keywrap

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

const (
	// RoomKeySize is the size of a room's symmetric content key.
	RoomKeySize = 32
	wrapInfo    = "workroom-room-key-wrap-v1"
	sealInfo    = "workroom-private-key-seal-v1"
)

// KeyPair is an X25519 key pair. The private key leaves the server
// only sealed under the owner's credential-derived secret.
type KeyPair struct {
	Public  []byte
	Private []byte
}

func GenerateKeyPair() (KeyPair, error) {
	private := make([]byte, curve25519.ScalarSize)
	if err := readRandom(private); err != nil {
		return KeyPair{}, err
	}
	public, err := curve25519.X25519(private, curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: public, Private: private}, nil
}

// NewRoomKey generates a fresh symmetric room content key.
func NewRoomKey() ([]byte, error) {
	key := make([]byte, RoomKeySize)
	if err := readRandom(key); err != nil {
		return nil, err
	}
	return key, nil
}

// WrapKey seals a room key to a recipient public key: an ephemeral
// X25519 exchange feeds HKDF-SHA256, and the resulting key encrypts
// the room key with XChaCha20-Poly1305. Returns the ephemeral public
// key and the nonce-prefixed box.
func WrapKey(recipientPublic, roomKey []byte) (ephemeralPublic, box []byte, err error) {
	ephemeral, err := GenerateKeyPair()
	if err != nil {
		return nil, nil, err
	}
	kek, err := sharedKey(ephemeral.Private, recipientPublic, ephemeral.Public, recipientPublic, wrapInfo)
	if err != nil {
		return nil, nil, err
	}
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if err = readRandom(nonce); err != nil {
		return nil, nil, err
	}
	box = aead.Seal(nonce, nonce, roomKey, nil)
	return ephemeral.Public, box, nil
}

// UnwrapKey reverses WrapKey on the recipient side. Only clients run
// this in production; the server uses it solely in tests to prove the
// wrap round-trips.
func UnwrapKey(recipientPrivate, ephemeralPublic, box []byte) ([]byte, error) {
	recipientPublic, err := curve25519.X25519(recipientPrivate, curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	kek, err := sharedKey(recipientPrivate, ephemeralPublic, ephemeralPublic, recipientPublic, wrapInfo)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(kek)
	if err != nil {
		return nil, err
	}
	if len(box) < aead.NonceSize() {
		return nil, fmt.Errorf("wrapped key too short")
	}
	nonce, sealed := box[:aead.NonceSize()], box[aead.NonceSize():]
	return aead.Open(nil, nonce, sealed, nil)
}

// SealPrivateKey encrypts a private key under a credential-derived
// secret. Returns the sealed key and the nonce used.
func SealPrivateKey(secretKey, privateKey []byte) (sealed, nonce []byte, err error) {
	aead, err := chacha20poly1305.NewX(hkdfExpand(secretKey, sealInfo))
	if err != nil {
		return nil, nil, err
	}
	nonce = make([]byte, aead.NonceSize())
	if err = readRandom(nonce); err != nil {
		return nil, nil, err
	}
	return aead.Seal(nil, nonce, privateKey, nil), nonce, nil
}

func OpenPrivateKey(secretKey, sealed, nonce []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(hkdfExpand(secretKey, sealInfo))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, sealed, nil)
}

// sharedKey derives the wrap key from an X25519 shared secret. The
// two public keys are bound into the HKDF salt so a transcript swap
// changes the derived key.
func sharedKey(private, public, saltA, saltB []byte, info string) ([]byte, error) {
	shared, err := curve25519.X25519(private, public)
	if err != nil {
		return nil, err
	}
	salt := append(append([]byte(nil), saltA...), saltB...)
	kek := make([]byte, RoomKeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, shared, salt, []byte(info)), kek); err != nil {
		return nil, err
	}
	return kek, nil
}

func hkdfExpand(secret []byte, info string) []byte {
	key := make([]byte, RoomKeySize)
	// Expansion of a full-entropy argon2 output cannot fail.
	_, _ = io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key)
	return key
}
