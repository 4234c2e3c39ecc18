// Package token signs and verifies session bearer tokens.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minKeyBytes = 32

var (
	// ErrInvalid indicates a malformed, forged or mismatched token.
	ErrInvalid = errors.New("session token is invalid")
	// ErrExpired indicates the token exp claim is in the past.
	ErrExpired = errors.New("session token is expired")
)

// Claims are the verified facts carried by a session token.
type Claims struct {
	UserID    string
	SessionID string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Config defines how tokens are signed and verified.
type Config struct {
	Key    []byte
	Issuer string
	Now    func() time.Time
}

// Signer issues and verifies HS256 session tokens.
type Signer struct {
	key    []byte
	issuer string
	now    func() time.Time
}

// NewSigner validates cfg and returns a signer.
func NewSigner(cfg Config) (*Signer, error) {
	if len(cfg.Key) < minKeyBytes {
		return nil, fmt.Errorf("session key must be at least %d bytes", minKeyBytes)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, fmt.Errorf("session issuer is required")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Signer{key: append([]byte(nil), cfg.Key...), issuer: issuer, now: now}, nil
}

// Issue signs a token binding userID to sessionID until expiresAt.
func (s *Signer) Issue(userID, sessionID string, expiresAt time.Time) (string, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(sessionID) == "" {
		return "", fmt.Errorf("user id and session id are required")
	}
	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID,
		ID:        sessionID,
		IssuedAt:  jwt.NewNumericDate(s.now().UTC()),
		ExpiresAt: jwt.NewNumericDate(expiresAt.UTC()),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (s *Signer) Verify(raw string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, ErrInvalid
	}
	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if parsed.Issuer != s.issuer {
		return Claims{}, fmt.Errorf("%w: issuer mismatch", ErrInvalid)
	}
	if parsed.Subject == "" || parsed.ID == "" {
		return Claims{}, fmt.Errorf("%w: sub and jti are required", ErrInvalid)
	}
	if parsed.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp is required", ErrInvalid)
	}
	expiresAt := parsed.ExpiresAt.Time.UTC()
	if !expiresAt.After(s.now().UTC()) {
		return Claims{}, ErrExpired
	}
	claims := Claims{
		UserID:    parsed.Subject,
		SessionID: parsed.ID,
		ExpiresAt: expiresAt,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time.UTC()
	}
	return claims, nil
}
