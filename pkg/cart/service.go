// Package cart manages each shopper's cart rows.
package cart

import (
	"context"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/repository"
	"github.com/shopspring/decimal"
)

// View is a cart as rendered: lines joined with products and their total.
type View struct {
	Lines []models.CartLine
	Total decimal.Decimal
}

func (v View) Empty() bool {
	return len(v.Lines) == 0
}

type Service struct {
	store repository.Store
}

func NewService(store repository.Store) *Service {
	return &Service{store: store}
}

// AddItem adds qty units of a product, merging into an existing row for the
// same product. qty is checked against the stock on hand, not against what
// is already in the cart.
func (s *Service) AddItem(ctx context.Context, userID, productID uint, qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity must be positive")
	}

	return s.store.RunInTx(ctx, func(tx repository.Store) error {
		product, err := tx.Products().Get(ctx, productID)
		if err != nil {
			return err
		}
		if qty > product.Stock {
			return apperr.Conflict(apperr.CodeOutOfStock, "not enough stock")
		}

		item, err := tx.Carts().Find(ctx, userID, productID)
		switch {
		case err == nil:
			return tx.Carts().AddQuantity(ctx, userID, item.ID, qty)
		case apperr.KindOf(err) == apperr.KindNotFound:
			return tx.Carts().Create(ctx, &models.CartItem{UserID: userID, ProductID: productID, Quantity: qty})
		default:
			return err
		}
	})
}

// UpdateItem sets the quantity of one of the user's rows; qty <= 0 removes it.
func (s *Service) UpdateItem(ctx context.Context, userID, cartItemID uint, qty int) error {
	if qty <= 0 {
		return s.store.Carts().Delete(ctx, userID, cartItemID)
	}
	return s.store.Carts().SetQuantity(ctx, userID, cartItemID, qty)
}

func (s *Service) ListItems(ctx context.Context, userID uint) (View, error) {
	lines, err := s.store.Carts().Lines(ctx, userID)
	if err != nil {
		return View{}, err
	}
	return View{Lines: lines, Total: models.CartTotal(lines)}, nil
}
