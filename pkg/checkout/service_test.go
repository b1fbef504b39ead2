package checkout

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/notify"
	"github.com/example/shopfront/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Notify(msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
}

// faultyStore fails clearing carts, the last write of a checkout.
type faultyStore struct {
	repository.Store
	err error
}

func (s *faultyStore) RunInTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.RunInTx(ctx, func(tx repository.Store) error {
		return fn(&faultyStore{Store: tx, err: s.err})
	})
}

func (s *faultyStore) Carts() repository.CartRepository {
	return &faultyCarts{CartRepository: s.Store.Carts(), err: s.err}
}

type faultyCarts struct {
	repository.CartRepository
	err error
}

func (c *faultyCarts) Clear(context.Context, uint) error {
	return c.err
}

// eachStore runs fn against the in-memory store and a SQLite-backed gorm store.
func eachStore(t *testing.T, fn func(t *testing.T, store repository.Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, repository.NewMemoryStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		db, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "shop.db"), nil)
		require.NoError(t, err)
		store := repository.NewGormStore(db)
		t.Cleanup(func() { _ = store.Close() })
		fn(t, store)
	})
}

type fixture struct {
	store    repository.Store
	notifier *recordingNotifier
	user     *models.User
	a, b     *models.Product
}

func newFixture(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: store, notifier: &recordingNotifier{}}

	f.user = &models.User{Username: "amy", Email: "amy@example.com", PasswordHash: "x"}
	require.NoError(t, f.store.Users().Create(ctx, f.user))

	f.a = &models.Product{Name: "Mug", Price: decimal.NewFromInt(50), Stock: 10}
	f.b = &models.Product{Name: "Teapot", Price: decimal.NewFromInt(100), Stock: 5}
	require.NoError(t, f.store.Products().Create(ctx, f.a))
	require.NoError(t, f.store.Products().Create(ctx, f.b))
	return f
}

func (f *fixture) service(store repository.Store) *Service {
	return NewService(store, f.notifier, nil, zap.NewNop())
}

func (f *fixture) addToCart(t *testing.T, userID uint, p *models.Product, qty int) {
	t.Helper()
	require.NoError(t, f.store.Carts().Create(context.Background(), &models.CartItem{
		UserID: userID, ProductID: p.ID, Quantity: qty,
	}))
}

func (f *fixture) stock(t *testing.T, p *models.Product) int {
	t.Helper()
	got, err := f.store.Products().Get(context.Background(), p.ID)
	require.NoError(t, err)
	return got.Stock
}

func TestPlaceOrder(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.Store) {
		f := newFixture(t, store)
		ctx := context.Background()
		f.addToCart(t, f.user.ID, f.a, 2)
		f.addToCart(t, f.user.ID, f.b, 1)
		s := f.service(f.store)

		summary, err := s.Summary(ctx, f.user.ID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(200).Equal(summary.Total))

		orderID, err := s.PlaceOrder(ctx, f.user, " 1 Main St ", "555-0100")
		require.NoError(t, err)

		detail, err := s.GetOrder(ctx, f.user.ID, orderID)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(200).Equal(detail.Order.TotalAmount))
		assert.Equal(t, models.OrderStatusPending, detail.Order.Status)
		assert.Equal(t, "1 Main St", detail.Order.Address)
		require.Len(t, detail.Lines, 2)
		assert.True(t, decimal.NewFromInt(50).Equal(detail.Lines[0].Price))
		assert.Equal(t, 2, detail.Lines[0].Quantity)

		assert.Equal(t, 8, f.stock(t, f.a))
		assert.Equal(t, 4, f.stock(t, f.b))

		lines, err := f.store.Carts().Lines(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Empty(t, lines)

		require.Len(t, f.notifier.msgs, 1)
		assert.Equal(t, notify.KindOrderConfirmation, f.notifier.msgs[0].Kind)
		assert.Equal(t, "amy@example.com", f.notifier.msgs[0].To)
		assert.Equal(t, orderID, f.notifier.msgs[0].OrderID)
	})
}

func TestOrderTotalsAreFrozen(t *testing.T) {
	f := newFixture(t, repository.NewMemoryStore())
	ctx := context.Background()
	f.addToCart(t, f.user.ID, f.a, 2)
	s := f.service(f.store)

	orderID, err := s.PlaceOrder(ctx, f.user, "1 Main St", "5550100")
	require.NoError(t, err)

	f.a.Price = decimal.NewFromInt(75)
	require.NoError(t, f.store.Products().Update(ctx, f.a))

	detail, err := s.GetOrder(ctx, f.user.ID, orderID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(100).Equal(detail.Order.TotalAmount))
	assert.True(t, decimal.NewFromInt(50).Equal(detail.Lines[0].Price))
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.Store) {
		f := newFixture(t, store)
		ctx := context.Background()
		f.addToCart(t, f.user.ID, f.a, 1)
		f.addToCart(t, f.user.ID, f.b, 6)

		_, err := f.service(f.store).PlaceOrder(ctx, f.user, "1 Main St", "555-0100")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.CodeInsufficientStock))
		assert.Contains(t, apperr.Message(err, ""), "Teapot")

		assert.Equal(t, 10, f.stock(t, f.a))
		assert.Equal(t, 5, f.stock(t, f.b))
		n, err := f.store.Orders().Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		lines, err := f.store.Carts().Lines(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Len(t, lines, 2)
		assert.Empty(t, f.notifier.msgs)
	})
}

func TestPlaceOrderEmptyCart(t *testing.T) {
	f := newFixture(t, repository.NewMemoryStore())

	_, err := f.service(f.store).PlaceOrder(context.Background(), f.user, "1 Main St", "555-0100")
	assert.True(t, apperr.Is(err, apperr.CodeEmptyCart))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
}

func TestPlaceOrderValidation(t *testing.T) {
	f := newFixture(t, repository.NewMemoryStore())
	f.addToCart(t, f.user.ID, f.a, 1)
	s := f.service(f.store)

	for _, tc := range []struct{ address, phone string }{
		{"", "555-0100"},
		{"1 Main St", "   "},
		{"1 Main St", "call me"},
		{"1 Main St", "12"},
	} {
		_, err := s.PlaceOrder(context.Background(), f.user, tc.address, tc.phone)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), "%q %q", tc.address, tc.phone)
	}
	assert.Equal(t, 10, f.stock(t, f.a))
}

func TestPlaceOrderRollsBackOnFailure(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.Store) {
		f := newFixture(t, store)
		ctx := context.Background()
		f.addToCart(t, f.user.ID, f.a, 2)
		f.addToCart(t, f.user.ID, f.b, 1)
		boom := errors.New("disk full")

		_, err := f.service(&faultyStore{Store: f.store, err: boom}).PlaceOrder(ctx, f.user, "1 Main St", "555-0100")
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.CodeCheckoutFailed))
		assert.Equal(t, apperr.KindInfrastructure, apperr.KindOf(err))
		assert.ErrorIs(t, err, boom)

		assert.Equal(t, 10, f.stock(t, f.a))
		assert.Equal(t, 5, f.stock(t, f.b))
		n, err := f.store.Orders().Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		lines, err := f.store.Carts().Lines(ctx, f.user.ID)
		require.NoError(t, err)
		assert.Len(t, lines, 2)
		assert.Empty(t, f.notifier.msgs)
	})
}

func TestConcurrentCheckoutsNeverOversell(t *testing.T) {
	eachStore(t, func(t *testing.T, store repository.Store) {
		f := newFixture(t, store)
		ctx := context.Background()
		s := f.service(f.store)

		var users []*models.User
		for _, name := range []string{"u1", "u2", "u3", "u4"} {
			u := &models.User{Username: name, Email: name + "@example.com", PasswordHash: "x"}
			require.NoError(t, f.store.Users().Create(ctx, u))
			f.addToCart(t, u.ID, f.b, 2)
			users = append(users, u)
		}

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			placed int
		)
		for _, u := range users {
			wg.Add(1)
			go func(u *models.User) {
				defer wg.Done()
				if _, err := s.PlaceOrder(ctx, u, "1 Main St", "555-0100"); err == nil {
					mu.Lock()
					placed++
					mu.Unlock()
				}
			}(u)
		}
		wg.Wait()

		assert.Equal(t, 2, placed)
		assert.Equal(t, 1, f.stock(t, f.b))
	})
}

func TestGetOrderIsScopedToOwner(t *testing.T) {
	f := newFixture(t, repository.NewMemoryStore())
	ctx := context.Background()
	f.addToCart(t, f.user.ID, f.a, 1)
	s := f.service(f.store)

	orderID, err := s.PlaceOrder(ctx, f.user, "1 Main St", "555-0100")
	require.NoError(t, err)

	_, err = s.GetOrder(ctx, f.user.ID+1, orderID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	orders, err := s.ListOrders(ctx, f.user.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, orderID, orders[0].ID)
}
