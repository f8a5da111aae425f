package users

import (
	"context"
	"strings"

	"github.com/everycheese/everycheese/internal/models"
)

// Service maps identity provider claims onto stored users.
type Service struct {
	store Store
}

func NewService(st Store) *Service {
	return &Service{store: st}
}

// profile extracts the user fields carried by OIDC claims. ok is false when
// the claims have no subject.
func profile(claims map[string]interface{}) (u models.User, ok bool) {
	str := func(k string) string {
		s, _ := claims[k].(string)
		return strings.TrimSpace(s)
	}
	u = models.User{
		Sub:      str("sub"),
		Username: str("preferred_username"),
		Email:    str("email"),
		Name:     str("name"),
	}
	if u.Name == "" {
		u.Name = strings.TrimSpace(str("given_name") + " " + str("family_name"))
	}
	return u, u.Sub != ""
}

// SyncFromClaims records the signed-in user described by claims and returns
// the stored copy. Claims without a subject yield (nil, nil).
func (s *Service) SyncFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	u, ok := profile(claims)
	if !ok {
		return nil, nil
	}
	return s.store.Save(ctx, &u)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*models.User, error) {
	if sub == "" {
		return nil, nil
	}
	return s.store.Find(ctx, sub)
}
