// Package auth supplies bearer credentials and the authenticated user's identity.
// Token issuance is owned by an external auth layer; this package only carries tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt"
)

var (
	ErrNoToken = errors.New("no authentication token available")
	ErrNoUser  = errors.New("token does not identify a user")
)

// userClaims are checked in order when reading the user id from a token.
var userClaims = []string{"userId", "sub", "id"}

// TokenSource returns the bearer credential for outbound calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a fixed bearer credential; empty means unauthenticated.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) {
	token := strings.TrimSpace(string(s))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// SessionToken is a replaceable credential, updated whenever a client presents a newer token.
type SessionToken struct {
	mu    sync.RWMutex
	token string
}

func (s *SessionToken) Set(token string) {
	s.mu.Lock()
	s.token = strings.TrimSpace(token)
	s.mu.Unlock()
}

func (s *SessionToken) Token(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.token == "" {
		return "", ErrNoToken
	}
	return s.token, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

// UserID reads the user id from a JWT. With a secret the HMAC signature is verified;
// without one the token is only decoded, leaving verification to the backend.
func UserID(token, secret string) (string, error) {
	claims := jwt.MapClaims{}
	if secret == "" {
		if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
			return "", fmt.Errorf("failed to decode token: %w", err)
		}
	} else {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil {
			return "", fmt.Errorf("failed to verify token: %w", err)
		}
	}

	for _, name := range userClaims {
		switch v := claims[name].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return fmt.Sprintf("%.0f", v), nil
		}
	}
	return "", ErrNoUser
}
