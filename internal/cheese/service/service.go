package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/everycheese/everycheese/internal/cheese"
	"github.com/everycheese/everycheese/internal/cheese/repository"
	"github.com/everycheese/everycheese/pkg/metrics"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound = errors.New("not found")
)

// maxSlugAttempts bounds the -2, -3 ... suffixes tried for a duplicate name.
const maxSlugAttempts = 100

// ValidationError reports a form that failed validation.
type ValidationError struct {
	Fields cheese.FieldErrors
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid cheese form (%d field errors)", len(e.Fields))
}

// Service defines the catalog operations used by the handler layer.
type Service interface {
	List(ctx context.Context) ([]*cheese.Cheese, error)
	Get(ctx context.Context, slug string) (*cheese.Cheese, error)
	Create(ctx context.Context, f cheese.Form, creatorSub string) (*cheese.Cheese, error)
	Update(ctx context.Context, slug string, f cheese.Form) (*cheese.Cheese, error)
	AttachPhoto(ctx context.Context, slug, key string) error
}

// New returns a Service backed by the given repository.
func New(repo repository.Repository) Service {
	return &catalogService{repo: repo}
}

// NewMemoryService returns a Service backed by the in-memory repository.
func NewMemoryService() Service {
	return New(repository.NewMemoryRepo())
}

// NewMongoService returns a Service backed by a MongoDB collection.
// Caller is responsible for creating the collection (and client) and passing it in.
func NewMongoService(ctx context.Context, col *mongo.Collection) (Service, error) {
	repo, err := repository.NewMongoRepo(ctx, col)
	if err != nil {
		return nil, fmt.Errorf("cheese repository: %w", err)
	}
	return New(repo), nil
}

type catalogService struct {
	repo repository.Repository
}

func (s *catalogService) List(ctx context.Context) ([]*cheese.Cheese, error) {
	return s.repo.List(ctx)
}

func (s *catalogService) Get(ctx context.Context, slug string) (*cheese.Cheese, error) {
	c, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return c, nil
}

// Create stores a new cheese attributed to creatorSub under the first free
// slug derived from its name.
func (s *catalogService) Create(ctx context.Context, f cheese.Form, creatorSub string) (*cheese.Cheese, error) {
	if errs := f.Validate(); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	base := cheese.Slugify(f.Name)
	for _, candidate := range cheese.SlugCandidates(base, maxSlugAttempts) {
		c := &cheese.Cheese{Slug: candidate, CreatorSub: creatorSub}
		f.Apply(c)
		err := s.repo.Create(ctx, c)
		if errors.Is(err, repository.ErrSlugTaken) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("create cheese: %w", err)
		}
		metrics.CheesesCreated.Inc()
		return c, nil
	}
	return nil, fmt.Errorf("create cheese: no free slug for %q", base)
}

func (s *catalogService) Update(ctx context.Context, slug string, f cheese.Form) (*cheese.Cheese, error) {
	if errs := f.Validate(); errs != nil {
		return nil, &ValidationError{Fields: errs}
	}
	c, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	f.Apply(c)
	if err := s.repo.Update(ctx, c); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update cheese: %w", err)
	}
	metrics.CheesesUpdated.Inc()
	return c, nil
}

func (s *catalogService) AttachPhoto(ctx context.Context, slug, key string) error {
	c, err := s.Get(ctx, slug)
	if err != nil {
		return err
	}
	c.PhotoKey = key
	if err := s.repo.Update(ctx, c); err != nil {
		return fmt.Errorf("attach photo: %w", err)
	}
	return nil
}
