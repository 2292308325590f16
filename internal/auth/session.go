package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"printer-fieldops/internal/model"
)

// SessionTTL is fixed at issuance; use does not extend it.
const SessionTTL = 8 * time.Hour

// Session is the verified payload of a bearer token.
type Session struct {
	UserID    string
	TokenID   string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
}

// SessionCodec issues and verifies HS256 session tokens with its own secret.
type SessionCodec struct {
	secret []byte
	ttl    time.Duration
}

func NewSessionCodec(secret string) (*SessionCodec, error) {
	if secret == "" {
		return nil, fmt.Errorf("%w: session secret is empty", model.ErrServiceMisconfigured)
	}
	return &SessionCodec{secret: []byte(secret), ttl: SessionTTL}, nil
}

func (c *SessionCodec) Issue(userID string, now time.Time) (string, Session, error) {
	// Tokens carry whole seconds; rounding up keeps the full TTL.
	now = now.UTC()
	issued := now.Truncate(time.Second)
	if issued.Before(now) {
		issued = issued.Add(time.Second)
	}
	session := Session{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		IssuedAt:  issued,
		ExpiresAt: issued.Add(c.ttl),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			ID:        session.TokenID,
			IssuedAt:  jwt.NewNumericDate(session.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", Session{}, fmt.Errorf("signing session token: %w", err)
	}

	return signed, session, nil
}

// Verify accepts a token up to and including its expiry instant. Expiry is
// compared here because the jwt validator treats now == exp as expired.
func (c *SessionCodec) Verify(tokenString string, now time.Time) (Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(_ *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", model.ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Session{}, fmt.Errorf("%w: missing subject, issue time or expiry", model.ErrInvalidToken)
	}

	if now.After(claims.ExpiresAt.Time) {
		return Session{}, model.ErrExpiredToken
	}

	return Session{
		UserID:    claims.Subject,
		TokenID:   claims.ID,
		IssuedAt:  claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
