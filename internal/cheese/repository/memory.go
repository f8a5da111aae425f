package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/everycheese/everycheese/internal/cheese"
)

// MemoryRepo is an in-memory repository used by unit tests and when no
// MongoDB is configured. Rows are copied in and out.
type MemoryRepo struct {
	mu    sync.RWMutex
	seq   int
	store map[string]*cheese.Cheese
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{store: make(map[string]*cheese.Cheese)}
}

func (m *MemoryRepo) Create(ctx context.Context, c *cheese.Cheese) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.store[c.Slug]; ok {
		return ErrSlugTaken
	}
	m.seq++
	if c.ID == "" {
		c.ID = fmt.Sprintf("cheese_%d", m.seq)
	}
	c.CreatedAt = time.Now().UTC()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	m.store[c.Slug] = &cp
	return nil
}

func (m *MemoryRepo) GetBySlug(ctx context.Context, slug string) (*cheese.Cheese, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.store[slug]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryRepo) List(ctx context.Context) ([]*cheese.Cheese, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*cheese.Cheese, 0, len(m.store))
	for _, c := range m.store {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].Slug < out[j].Slug
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryRepo) Update(ctx context.Context, c *cheese.Cheese) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.store[c.Slug]
	if !ok {
		return ErrNotFound
	}
	c.ID = cur.ID
	c.CreatedAt = cur.CreatedAt
	c.CreatorSub = cur.CreatorSub
	c.UpdatedAt = time.Now().UTC()
	cp := *c
	m.store[c.Slug] = &cp
	return nil
}
