// Package checkout turns a shopper's cart into an order.
package checkout

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/notify"
	"github.com/example/shopfront/pkg/repository"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

var phonePattern = regexp.MustCompile(`^[0-9+\- ]{5,20}$`)

type Service struct {
	store    repository.Store
	notifier notify.Notifier
	audit    repository.AuditRecorder
	logger   *zap.Logger
}

func NewService(store repository.Store, notifier notify.Notifier, audit repository.AuditRecorder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
	}
}

// Summary is the checkout page preview of the cart.
type Summary struct {
	Lines []models.CartLine
	Total decimal.Decimal
}

func (s *Service) Summary(ctx context.Context, userID uint) (*Summary, error) {
	lines, err := s.store.Carts().Lines(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Summary{Lines: lines, Total: models.CartTotal(lines)}, nil
}

// PlaceOrder converts the user's cart into a pending order in a single
// transaction: it checks stock, snapshots prices, decrements stock and
// clears the cart. Nothing is written unless every step succeeds.
func (s *Service) PlaceOrder(ctx context.Context, user *models.User, address, phone string) (uint, error) {
	address = strings.TrimSpace(address)
	phone = strings.TrimSpace(phone)
	if address == "" || phone == "" {
		return 0, apperr.Validation("address and phone are required")
	}
	if !phonePattern.MatchString(phone) {
		return 0, apperr.Validation("invalid phone number")
	}

	var order *models.Order
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		lines, err := tx.Carts().Lines(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to load cart: %w", err)
		}
		if len(lines) == 0 {
			return apperr.EmptyCart()
		}
		for _, l := range lines {
			if l.Stock < l.Quantity {
				return apperr.InsufficientStock(l.Name)
			}
		}

		order = &models.Order{
			UserID:      user.ID,
			TotalAmount: models.CartTotal(lines),
			Status:      models.OrderStatusPending,
			Address:     address,
			Phone:       phone,
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		for _, l := range lines {
			item := &models.OrderItem{
				OrderID:   order.ID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				Price:     l.Price,
			}
			if err := tx.Orders().CreateItem(ctx, item); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}

			ok, err := tx.Products().DecrementStock(ctx, l.ProductID, l.Quantity)
			if err != nil {
				return fmt.Errorf("failed to update stock: %w", err)
			}
			if !ok {
				return apperr.InsufficientStock(l.Name)
			}
		}

		if err := tx.Carts().Clear(ctx, user.ID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			s.logger.Error("Checkout failed", zap.Uint("user_id", user.ID), zap.Error(err))
			return 0, apperr.Infrastructure(apperr.CodeCheckoutFailed, "order could not be placed", err)
		}
		return 0, err
	}

	s.logger.Info("Order placed",
		zap.Uint("order_id", order.ID),
		zap.Uint("user_id", user.ID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	s.notifier.Notify(notify.OrderConfirmation(user.Email, user.Username, order))
	s.recordAudit(order, user)

	return order.ID, nil
}

func (s *Service) recordAudit(order *models.Order, user *models.User) {
	if s.audit == nil {
		return
	}
	go func() {
		err := s.audit.CreateAuditLog(context.Background(), &repository.AuditLog{
			Service:  "checkout",
			Action:   "create_order",
			Entity:   "order",
			EntityID: fmt.Sprint(order.ID),
			Actor:    user.Username,
			Data:     bson.M{"user_id": user.ID, "total_amount": order.TotalAmount.StringFixed(2)},
		})
		if err != nil {
			s.logger.Warn("Failed to record audit log", zap.Uint("order_id", order.ID), zap.Error(err))
		}
	}()
}

func (s *Service) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	return s.store.Orders().ListByUser(ctx, userID)
}

// GetOrder returns one of the user's orders with its lines. Orders owned by
// someone else are reported as missing.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*models.OrderDetail, error) {
	order, err := s.store.Orders().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, apperr.NotFound("order")
	}

	lines, err := s.store.Orders().Lines(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return &models.OrderDetail{Order: *order, Lines: lines}, nil
}
