// Package auth issues and checks API tokens, hashes passwords and provides
// the middleware that puts the caller's identity into the request context.
//
// TOKEN LIFECYCLE:
//  1. POST /api/auth/token/login/ verifies email + password and returns a
//     signed token (HS256) carrying the user id and a unique token id (jti).
//  2. Clients send it back as "Authorization: Token <t>" (or Bearer).
//  3. POST /api/auth/token/logout/ records the jti in a Revoker until the
//     token would have expired anyway; the middleware rejects revoked ids.
//
// Signatures are checked without touching the database. Only the revocation
// lookup costs a round trip (SQLite table or Redis).
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/xid"
)

const issuer = "foodgram"

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("auth: invalid token")

// TokenService signs and verifies tokens with a shared HMAC secret.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService rejects secrets shorter than 16 characters.
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token TTL must be positive")
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// Claims is what a valid token proves about the caller.
type Claims struct {
	UserID    int64
	TokenID   string
	ExpiresAt time.Time
}

// Generate issues a token for userID that lives for the configured TTL.
func (s *TokenService) Generate(userID int64) (string, error) {
	return s.GenerateWithDuration(userID, s.ttl)
}

// GenerateWithDuration issues a token with a custom lifetime. A negative
// duration yields an already-expired token, which tests rely on.
func (s *TokenService) GenerateWithDuration(userID int64, d time.Duration) (string, error) {
	now := time.Now()

	c := jwt.RegisteredClaims{
		ID:        xid.New().String(),
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
		Issuer:    issuer,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, algorithm and expiry.
// jwt.WithValidMethods blocks the "alg: none" downgrade.
func (s *TokenService) Validate(tokenStr string) (*Claims, error) {
	var rc jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&rc,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(rc.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, rc.Subject)
	}
	if rc.ID == "" {
		return nil, fmt.Errorf("%w: missing token id", ErrInvalidToken)
	}

	return &Claims{
		UserID:    userID,
		TokenID:   rc.ID,
		ExpiresAt: rc.ExpiresAt.Time,
	}, nil
}
