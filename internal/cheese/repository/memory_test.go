package repository

import (
	"context"
	"testing"

	"github.com/everycheese/everycheese/internal/cheese"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepoCRUD(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	c := &cheese.Cheese{Name: "Brie", Slug: "brie", Firmness: cheese.FirmnessSoft, CreatorSub: "u1"}
	require.NoError(t, r.Create(ctx, c))
	require.NotEmpty(t, c.ID)
	require.False(t, c.CreatedAt.IsZero())

	require.ErrorIs(t, r.Create(ctx, &cheese.Cheese{Name: "Brie", Slug: "brie"}), ErrSlugTaken)

	got, err := r.GetBySlug(ctx, "brie")
	require.NoError(t, err)
	require.Equal(t, "Brie", got.Name)

	// returned rows are copies
	got.Name = "mutated"
	again, err := r.GetBySlug(ctx, "brie")
	require.NoError(t, err)
	require.Equal(t, "Brie", again.Name)

	upd := &cheese.Cheese{Slug: "brie", Name: "Brie de Meaux", Description: "Something new", Firmness: cheese.FirmnessSoft}
	require.NoError(t, r.Update(ctx, upd))
	require.Equal(t, c.ID, upd.ID)
	require.Equal(t, "u1", upd.CreatorSub)
	got, err = r.GetBySlug(ctx, "brie")
	require.NoError(t, err)
	require.Equal(t, "Something new", got.Description)

	require.ErrorIs(t, r.Update(ctx, &cheese.Cheese{Slug: "missing"}), ErrNotFound)
	_, err = r.GetBySlug(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepoListSortedByName(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepo()
	for _, n := range []string{"Gouda", "Brie", "Comté"} {
		require.NoError(t, r.Create(ctx, &cheese.Cheese{Name: n, Slug: cheese.Slugify(n)}))
	}
	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "Brie", list[0].Name)
	require.Equal(t, "Comté", list[1].Name)
	require.Equal(t, "Gouda", list[2].Name)
}
