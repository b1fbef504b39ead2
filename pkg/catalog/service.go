// Package catalog serves the read-only storefront queries.
package catalog

import (
	"context"
	"strings"

	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/repository"
)

// HomeLimit is how many products the home page shows.
const HomeLimit = 8

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// ListAvailable returns in-stock products, newest first. limit <= 0 means all.
func (s *Service) ListAvailable(ctx context.Context, limit int) ([]models.Product, error) {
	return s.store.Products().Find(ctx, models.ProductFilter{InStockOnly: true, Limit: limit})
}

// Search matches term case-insensitively against product names. An empty
// term or a zero category leaves that filter off.
func (s *Service) Search(ctx context.Context, term string, categoryID uint) ([]models.Product, error) {
	return s.store.Products().Find(ctx, models.ProductFilter{
		Term:        strings.TrimSpace(term),
		CategoryID:  categoryID,
		InStockOnly: true,
	})
}

func (s *Service) Get(ctx context.Context, id uint) (*models.Product, error) {
	return s.store.Products().Get(ctx, id)
}

func (s *Service) Categories(ctx context.Context) ([]models.Category, error) {
	return s.store.Categories().List(ctx)
}
