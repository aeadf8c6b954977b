// Package auth issues and verifies Cliplet session tokens and runs the OAuth
// sign-in flows.
//
// AUTHENTICATION FLOW OVERVIEW:
//  1. User visits /api/auth/{github,google} → redirected to the provider
//  2. The provider calls back /api/auth/{provider}/callback with a code
//  3. Server exchanges the code for a profile + verified email, upserts the user
//  4. Server issues a JWT and stores it in the "auth_token" HttpOnly cookie
//  5. On later requests the guard reads the cookie, validates the JWT and
//     hands the user id to the handler
//
// WHY JWT?
// The session is stateless: the token carries the user id and expiry, and the
// HMAC signature proves the server issued it. There is no session table and
// no refresh step. When the token expires the user signs in again.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// SessionTTL is both the token lifetime and the cookie Max-Age.
	SessionTTL = 7 * 24 * time.Hour

	issuer = "cliplet"
)

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
}

// NewTokenService creates a TokenService with the given secret.
// Example: JWT_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string) (*TokenService, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	return &TokenService{secret: []byte(secret)}, nil
}

// claims is the JWT payload. "sub" holds the internal user ID.
type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a session token for userID valid for SessionTTL.
func (s *TokenService) Generate(userID string) (string, error) {
	return s.GenerateWithDuration(userID, SessionTTL)
}

// GenerateWithDuration creates a token with a custom expiry duration.
// Used in tests to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(userID string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a JWT string and returns its subject.
//
// VALIDATION CHECKS (performed by the jwt library):
//   - Signature is valid (wasn't tampered with)
//   - Token is not expired, and carries an expiry at all
//   - Issuer is "cliplet"
//   - Algorithm is HS256
//
// ALGORITHM CONFUSION ATTACK:
// Without pinning the algorithm, a token signed with "none" (or with an RSA
// public key used as an HMAC secret) could be accepted. jwt.WithValidMethods
// rejects anything but HS256 before the signature is even checked.
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
