package repository

import (
	"context"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const DefaultProductImage = "images/default-product.svg"

type sampleProduct struct {
	name, description, price, category string
	stock                              int
}

var sampleProducts = []sampleProduct{
	{"Smartphone", "High-performance smartphone", "2999.00", "Electronics", 50},
	{"Laptop", "Thin and light laptop", "5999.00", "Electronics", 30},
	{"T-Shirt", "Comfortable cotton t-shirt", "89.00", "Clothing", 100},
	{"Running Shoes", "Breathable running shoes", "299.00", "Shoes", 80},
	{"Programming Book", "Learn to program", "59.00", "Books", 200},
}

// Seed creates the admin account when no user has its username and fills an
// empty catalog with sample products. admin.PasswordHash must already be set.
func Seed(ctx context.Context, store Store, admin *models.User, logger *zap.Logger) error {
	return store.RunInTx(ctx, func(tx Store) error {
		_, err := tx.Users().GetByUsername(ctx, admin.Username)
		switch {
		case apperr.KindOf(err) == apperr.KindNotFound:
			admin.IsAdmin = true
			if err := tx.Users().Create(ctx, admin); err != nil {
				return err
			}
			logger.Info("Seeded admin user", zap.String("username", admin.Username))
		case err != nil:
			return err
		}

		n, err := tx.Products().Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}

		categories, err := tx.Categories().List(ctx)
		if err != nil {
			return err
		}
		byName := make(map[string]uint, len(categories))
		for _, c := range categories {
			byName[c.Name] = c.ID
		}

		for _, sp := range sampleProducts {
			id, ok := byName[sp.category]
			if !ok {
				c := &models.Category{Name: sp.category}
				if err := tx.Categories().Create(ctx, c); err != nil {
					return err
				}
				id = c.ID
				byName[sp.category] = id
			}
			categoryID := id
			p := &models.Product{
				Name:        sp.name,
				Description: sp.description,
				Price:       decimal.RequireFromString(sp.price),
				Stock:       sp.stock,
				CategoryID:  &categoryID,
				ImageURL:    DefaultProductImage,
			}
			if err := tx.Products().Create(ctx, p); err != nil {
				return err
			}
		}
		logger.Info("Seeded sample products", zap.Int("count", len(sampleProducts)))
		return nil
	})
}
