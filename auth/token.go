// Package auth resolves caller identity from signed tokens. It is
// the messaging core's only view of the platform's identity system.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Caller is the resolved identity attached to every operation.
type Caller struct {
	UserID string
	Roles  []string
}

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies caller tokens. The signing key is
// injected from configuration; it is never hardcoded or logged.
type TokenManager struct {
	key      []byte
	duration time.Duration
}

func NewTokenManager(key []byte, duration time.Duration) *TokenManager {
	return &TokenManager{key: key, duration: duration}
}

// GenerateToken creates a signed JWT for a specific user.
func (m *TokenManager) GenerateToken(userID string, roles []string) (string, error) {
	claims := &CustomClaims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(m.duration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "workroom",
		},
	}
	// HS256: HMAC with SHA256.
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.key)
}

// ResolveCaller parses and validates the signature and expiration of
// a token string and returns the caller identity it carries.
func (m *TokenManager) ResolveCaller(tokenString string) (Caller, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return m.key, nil
	})
	if err != nil {
		return Caller{}, err
	}
	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return Caller{UserID: claims.UserID, Roles: claims.Roles}, nil
	}
	return Caller{}, jwt.ErrSignatureInvalid
}
