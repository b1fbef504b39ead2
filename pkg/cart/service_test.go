package cart

import (
	"context"
	"testing"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *models.Product) {
	t.Helper()
	store := repository.NewMemoryStore()
	p := &models.Product{Name: "Lamp", Price: decimal.RequireFromString("19.99"), Stock: 5}
	require.NoError(t, store.Products().Create(context.Background(), p))
	return NewService(store), p
}

func TestAddItemMergesRows(t *testing.T) {
	s, p := setup(t)
	ctx := context.Background()

	require.NoError(t, s.AddItem(ctx, 1, p.ID, 2))
	require.NoError(t, s.AddItem(ctx, 1, p.ID, 3))

	view, err := s.ListItems(ctx, 1)
	require.NoError(t, err)
	require.Len(t, view.Lines, 1)
	assert.Equal(t, 5, view.Lines[0].Quantity)
	assert.True(t, decimal.RequireFromString("99.95").Equal(view.Total))
}

func TestAddItemRejects(t *testing.T) {
	s, p := setup(t)
	ctx := context.Background()

	err := s.AddItem(ctx, 1, p.ID, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	err = s.AddItem(ctx, 1, p.ID, 6)
	assert.True(t, apperr.Is(err, apperr.CodeOutOfStock))

	err = s.AddItem(ctx, 1, 999, 1)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	view, err := s.ListItems(ctx, 1)
	require.NoError(t, err)
	assert.True(t, view.Empty())
	assert.True(t, view.Total.IsZero())
}

func TestUpdateItem(t *testing.T) {
	s, p := setup(t)
	ctx := context.Background()
	require.NoError(t, s.AddItem(ctx, 1, p.ID, 1))

	view, err := s.ListItems(ctx, 1)
	require.NoError(t, err)
	itemID := view.Lines[0].ID

	err = s.UpdateItem(ctx, 2, itemID, 4)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, s.UpdateItem(ctx, 1, itemID, 4))
	view, err = s.ListItems(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, view.Lines[0].Quantity)

	require.NoError(t, s.UpdateItem(ctx, 1, itemID, 0))
	view, err = s.ListItems(ctx, 1)
	require.NoError(t, err)
	assert.True(t, view.Empty())
}
