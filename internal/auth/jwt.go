package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"accessgate/internal/apperr"
)

// Claims is the content of a session token.
type Claims struct {
	jwt.RegisteredClaims
	IsAdmin               bool `json:"is_admin"`
	SessionTimeoutMinutes int  `json:"session_timeout"`
}

// UserID returns the subject as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// SessionTimeout returns the idle timeout the token was issued with.
func (c *Claims) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMinutes) * time.Minute
}

// TokenService issues and verifies HS256 session tokens. It holds no
// per-token state: a token is valid until its expiry passes or the signing
// secret changes, so restarting with a new secret revokes every token.
type TokenService struct {
	secret   []byte
	lifetime time.Duration
	now      func() time.Time
}

func NewTokenService(secret string, lifetime time.Duration) *TokenService {
	return &TokenService{
		secret:   []byte(secret),
		lifetime: lifetime,
		now:      time.Now,
	}
}

// WithClock returns a copy of the service reading time from now.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	c := *s
	c.now = now
	return &c
}

func (s *TokenService) Lifetime() time.Duration {
	return s.lifetime
}

func (s *TokenService) Issue(userID uuid.UUID, isAdmin bool, sessionTimeoutMinutes int) (string, time.Time, error) {
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.lifetime)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		IsAdmin:               isAdmin,
		SessionTimeoutMinutes: sessionTimeoutMinutes,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	// The encoded expiry has second precision.
	return signed, jwt.NewNumericDate(expiresAt).Time, nil
}

// Verify decodes token. Expired tokens fail with apperr.ErrExpiredToken, every
// other failure with apperr.ErrInvalidToken.
func (s *TokenService) Verify(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return nil, apperr.ErrExpiredToken
		}
		return nil, &apperr.Error{Kind: apperr.KindAuthentication, Code: apperr.ErrInvalidToken.Code, Message: apperr.ErrInvalidToken.Message, Err: err}
	}

	if !parsed.Valid {
		return nil, apperr.ErrInvalidToken
	}

	if _, err := claims.UserID(); err != nil {
		return nil, apperr.ErrInvalidToken
	}

	return claims, nil
}
