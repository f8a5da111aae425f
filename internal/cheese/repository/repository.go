package repository

import (
	"context"
	"errors"

	"github.com/everycheese/everycheese/internal/cheese"
)

var (
	ErrNotFound  = errors.New("cheese not found")
	ErrSlugTaken = errors.New("slug already taken")
)

// Repository persists cheeses keyed by their slug.
type Repository interface {
	Create(ctx context.Context, c *cheese.Cheese) error
	GetBySlug(ctx context.Context, slug string) (*cheese.Cheese, error)
	List(ctx context.Context) ([]*cheese.Cheese, error)
	// Update replaces the stored row identified by c.Slug.
	Update(ctx context.Context, c *cheese.Cheese) error
}
