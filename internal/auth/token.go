// Package auth issues and verifies the bearer tokens that identify kiosk
// and dashboard callers. The core trusts the resulting Principal and only
// enforces role and ownership checks on top of it.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Principal is the authenticated identity attached to every request.
type Principal struct {
	UserID          uint
	AdmissionNumber string
	Role            string
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == "admin"
}

type Claims struct {
	UserID          uint   `json:"uid"`
	AdmissionNumber string `json:"admission_number"`
	Role            string `json:"role"`
	jwt.RegisteredClaims
}

// Tokens signs and parses bearer tokens with an HMAC secret.
type Tokens struct {
	secret   []byte
	duration time.Duration
}

func NewTokens(secret string, duration time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), duration: duration}
}

// Issue creates a signed token for the given principal.
func (t *Tokens) Issue(p Principal) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:          p.UserID,
		AdmissionNumber: p.AdmissionNumber,
		Role:            p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.duration)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(t.secret)
}

// Verify parses a raw token and returns its principal.
func (t *Tokens) Verify(raw string) (Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	})
	if err != nil || !token.Valid || claims.UserID == 0 {
		return Principal{}, errors.New("invalid token")
	}
	return Principal{
		UserID:          claims.UserID,
		AdmissionNumber: claims.AdmissionNumber,
		Role:            claims.Role,
	}, nil
}
