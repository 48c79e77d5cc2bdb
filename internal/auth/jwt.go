package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/healme/healme-chat/internal/chat"
)

type Claims struct {
	UserID uint64 `json:"user_id"`
	Role   string `json:"user_type"`
	jwt.RegisteredClaims
}

func SignJWT(userID uint64, role chat.Role, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseJWT validates an HS256 token and returns the identity it carries.
func ParseJWT(token, secret string) (*Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	if c.UserID == 0 {
		return nil, errors.New("token has no user id")
	}
	role, err := chat.ParseRole(c.Role)
	if err != nil {
		return nil, err
	}
	return &Identity{ID: c.UserID, Role: role}, nil
}
