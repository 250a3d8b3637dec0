package app

import (
	"errors"
	"fmt"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid session token")

// SessionClaims identify a player to a room across reconnects.
type SessionClaims struct {
	UserID string
	Name   string
	Room   string
}

// TokenService issues and verifies HS256 session tokens for the standalone server.
type TokenService struct {
	secret string
	issuer string
	ttl    time.Duration
}

func NewTokenService(secret, issuer string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenService{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
	}
}

// Issue signs a token for userID. room may be empty for a lobby token.
func (s *TokenService) Issue(userID, name, room string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("token service is nil")
	}
	if userID == "" {
		return "", fmt.Errorf("user is required")
	}
	if s.secret == "" || s.issuer == "" {
		return "", fmt.Errorf("token config is incomplete")
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iss":  s.issuer,
		"sub":  userID,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
		"jti":  uuid.NewString(),
		"name": name,
		"room": room,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secret))
}

// Verify checks signature, issuer and expiry and returns the embedded identity.
func (s *TokenService) Verify(tokenString string) (SessionClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil || !token.Valid {
		return SessionClaims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !claims.VerifyIssuer(s.issuer, true) {
		return SessionClaims{}, fmt.Errorf("%w: bad issuer", ErrInvalidToken)
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return SessionClaims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	name, _ := claims["name"].(string)
	room, _ := claims["room"].(string)
	return SessionClaims{UserID: sub, Name: name, Room: room}, nil
}
