// Package auth resolves session tokens issued by the identity service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = fmt.Errorf("%w: expired", ErrInvalidToken)
)

// clockSkew is tolerated between this service and the identity service.
const clockSkew = 30 * time.Second

// Claims is the session token payload.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 session tokens.
type JWTService struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, expireHours int) *JWTService {
	return &JWTService{
		secret:  []byte(secret),
		ttl:     time.Duration(expireHours) * time.Hour,
		nowFunc: time.Now,
	}
}

// Generate signs a token for the user. Production tokens come from the identity service
// under the same secret; this is used by tests and tooling.
func (s *JWTService) Generate(userID uuid.UUID, email, role string) (string, error) {
	now := s.nowFunc()
	return jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}).SignedString(s.secret)
}

// Validate checks signature and expiry. Every failure wraps ErrInvalidToken.
func (s *JWTService) Validate(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(s.nowFunc),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrInvalidToken
	case claims.UserID == uuid.Nil:
		return nil, fmt.Errorf("%w: no user", ErrInvalidToken)
	}
	return claims, nil
}

// ValidateToken adapts Validate for the WebSocket endpoints.
func (s *JWTService) ValidateToken(tokenString string) (userID, role string, err error) {
	claims, err := s.Validate(tokenString)
	if err != nil {
		return "", "", err
	}
	return claims.UserID.String(), claims.Role, nil
}
