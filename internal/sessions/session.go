package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"
)

// ErrExpired is returned by stores asked to persist a session that has
// already expired.
var ErrExpired = errors.New("session already expired")

// Session binds an opaque token to a signed-in user. Browsers carry the token
// in the session cookie; API clients present it as refresh_token.
type Session struct {
	Token     string    `bson:"_id" json:"-"`
	Sub       string    `bson:"sub" json:"sub"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// Expired reports whether the session is no longer usable at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Store persists sessions by token. Get returns (nil, nil) for unknown
// tokens.
type Store interface {
	Put(ctx context.Context, s *Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}

func newToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
