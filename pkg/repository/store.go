package repository

import (
	"context"
	"time"

	"github.com/example/shopfront/pkg/models"
	"github.com/shopspring/decimal"
)

// Store is the persistence boundary of the shop. Repositories return typed
// models, never raw rows. Lookups that miss return an apperr NotFound error;
// unique-key violations return an apperr Conflict with CodeDuplicate.
type Store interface {
	Users() UserRepository
	Categories() CategoryRepository
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	Reports() ReportRepository

	// RunInTx runs fn against a Store bound to a single transaction. If fn
	// returns an error every write made through tx is rolled back.
	RunInTx(ctx context.Context, fn func(tx Store) error) error

	Ping(ctx context.Context) error
	Close() error
}

type UserRepository interface {
	Create(ctx context.Context, u *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type CategoryRepository interface {
	List(ctx context.Context) ([]models.Category, error)
	Get(ctx context.Context, id uint) (*models.Category, error)
	Create(ctx context.Context, c *models.Category) error
	Update(ctx context.Context, c *models.Category) error
	Delete(ctx context.Context, id uint) error
	CountProducts(ctx context.Context, id uint) (int64, error)
}

type ProductRepository interface {
	// Find returns matching products newest first, with CategoryName set.
	Find(ctx context.Context, f models.ProductFilter) ([]models.Product, error)
	Get(ctx context.Context, id uint) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) error
	Delete(ctx context.Context, id uint) error
	// DecrementStock subtracts qty only if at least qty units are left. It
	// reports false, without writing, when stock is short.
	DecrementStock(ctx context.Context, id uint, qty int) (bool, error)
	Count(ctx context.Context) (int64, error)
}

type CartRepository interface {
	Lines(ctx context.Context, userID uint) ([]models.CartLine, error)
	Find(ctx context.Context, userID, productID uint) (*models.CartItem, error)
	Create(ctx context.Context, item *models.CartItem) error
	AddQuantity(ctx context.Context, userID, itemID uint, delta int) error
	SetQuantity(ctx context.Context, userID, itemID uint, qty int) error
	Delete(ctx context.Context, userID, itemID uint) error
	Clear(ctx context.Context, userID uint) error
	DeleteByProduct(ctx context.Context, productID uint) error
}

type OrderRepository interface {
	Create(ctx context.Context, o *models.Order) error
	CreateItem(ctx context.Context, item *models.OrderItem) error
	Get(ctx context.Context, id uint) (*models.Order, error)
	ListByUser(ctx context.Context, userID uint) ([]models.Order, error)
	// List returns orders with usernames, newest first. An empty status
	// lists every order; limit <= 0 means no limit.
	List(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error)
	Lines(ctx context.Context, orderID uint) ([]models.OrderLine, error)
	UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error
	Count(ctx context.Context) (int64, error)
	CountByProduct(ctx context.Context, productID uint) (int64, error)
}

// ReportRepository aggregates over completed orders.
type ReportRepository interface {
	Revenue(ctx context.Context) (decimal.Decimal, error)
	DailySales(ctx context.Context, since time.Time) ([]models.DailySales, error)
	TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error)
}
