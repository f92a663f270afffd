package keywrap

import (
	"golang.org/x/crypto/argon2"
)

// Argon2id parameters per OWASP/CNIL recommendations.
const (
	Memory      = 64 * 1024 // 64 MB
	Iterations  = 3
	Parallelism = 2
	SaltLength  = 16
	KeyLength   = 32
)

// DeriveSecretKey stretches a user credential into a symmetric key.
// The server uses the result transiently to seal or open the user's
// private key; neither the credential nor the derived key is stored.
func DeriveSecretKey(secret string, salt []byte) []byte {
	return argon2.IDKey([]byte(secret), salt, Iterations, Memory, Parallelism, KeyLength)
}

// NewSalt generates a fresh KDF salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if err := readRandom(salt); err != nil {
		return nil, err
	}
	return salt, nil
}
