package sessions

import (
	"context"
	"time"
)

// DefaultTTL applies when a session is started without an explicit lifetime.
const DefaultTTL = 14 * 24 * time.Hour

// Service issues and resolves sessions on top of a Store.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(st Store) *Service {
	return &Service{store: st, now: func() time.Time { return time.Now().UTC() }}
}

// Start opens a session for sub lasting ttl and returns its token.
func (s *Service) Start(ctx context.Context, sub string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	token, err := newToken()
	if err != nil {
		return "", err
	}
	now := s.now()
	if err := s.store.Put(ctx, &Session{Token: token, Sub: sub, CreatedAt: now, ExpiresAt: now.Add(ttl)}); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the live session for token. Unknown and expired tokens
// yield (nil, nil); expired ones are removed.
func (s *Service) Resolve(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	sess, err := s.store.Get(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	if sess.Expired(s.now()) {
		_ = s.store.Delete(ctx, token)
		return nil, nil
	}
	return sess, nil
}

// End removes the session. Ending an unknown token is not an error.
func (s *Service) End(ctx context.Context, token string) error {
	return s.store.Delete(ctx, token)
}
