package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	Identity string `json:"identity"`
	Room     string `json:"room"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// NewSessionToken mints a token granting a caller identity access to a
// single call room.
func NewSessionToken(identity, room, secret string, ttl time.Duration) (string, error) {
	return newToken(identity, room, "caller", secret, ttl)
}

// NewAdminToken mints a token for the admin API.
func NewAdminToken(identity, secret string, ttl time.Duration) (string, error) {
	return newToken(identity, "", "admin", secret, ttl)
}

func newToken(identity, room, role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Identity: identity,
		Room:     room,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Audience:  []string{"kairos-agent"},
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func Parse(tokenString, secret string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := tok.Claims.(*Claims); ok && tok.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}
