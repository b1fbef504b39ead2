package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/shopspring/decimal"
)

type memoryData struct {
	users      map[uint]models.User
	categories map[uint]models.Category
	products   map[uint]models.Product
	cart       map[uint]models.CartItem
	orders     map[uint]models.Order
	orderItems map[uint]models.OrderItem
	seq        map[string]uint
}

func newMemoryData() *memoryData {
	return &memoryData{
		users:      make(map[uint]models.User),
		categories: make(map[uint]models.Category),
		products:   make(map[uint]models.Product),
		cart:       make(map[uint]models.CartItem),
		orders:     make(map[uint]models.Order),
		orderItems: make(map[uint]models.OrderItem),
		seq:        make(map[string]uint),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		users:      cloneMap(d.users),
		categories: cloneMap(d.categories),
		products:   cloneMap(d.products),
		cart:       cloneMap(d.cart),
		orders:     cloneMap(d.orders),
		orderItems: cloneMap(d.orderItems),
		seq:        cloneMap(d.seq),
	}
}

func (d *memoryData) next(table string) uint {
	d.seq[table]++
	return d.seq[table]
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// MemoryStore is a Store kept in process memory. Transactions work on a copy
// of the data that replaces the live copy only when fn succeeds; they are
// serialized with every other access.
type MemoryStore struct {
	mu   sync.Locker
	root *sync.Mutex
	data *memoryData
	inTx bool
}

func NewMemoryStore() *MemoryStore {
	m := &sync.Mutex{}
	return &MemoryStore{mu: m, root: m, data: newMemoryData()}
}

func (s *MemoryStore) Users() UserRepository           { return &memUsers{s} }
func (s *MemoryStore) Categories() CategoryRepository { return &memCategories{s} }
func (s *MemoryStore) Products() ProductRepository     { return &memProducts{s} }
func (s *MemoryStore) Carts() CartRepository           { return &memCarts{s} }
func (s *MemoryStore) Orders() OrderRepository         { return &memOrders{s} }
func (s *MemoryStore) Reports() ReportRepository       { return &memReports{s} }

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.root.Lock()
	defer s.root.Unlock()

	tx := &MemoryStore{mu: noopLocker{}, root: s.root, data: s.data.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.data = tx.data
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }
func (s *MemoryStore) Close() error               { return nil }

func (s *MemoryStore) view(fn func(d *memoryData)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.data)
}

func (s *MemoryStore) update(fn func(d *memoryData) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.data)
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

type memUsers struct{ s *MemoryStore }

func (r *memUsers) Create(_ context.Context, u *models.User) error {
	return r.s.update(func(d *memoryData) error {
		for _, existing := range d.users {
			if existing.Username == u.Username || existing.Email == u.Email {
				return apperr.Duplicate("username or email")
			}
		}
		u.ID = d.next("users")
		stamp(&u.CreatedAt)
		d.users[u.ID] = *u
		return nil
	})
}

func (r *memUsers) GetByID(_ context.Context, id uint) (*models.User, error) {
	var (
		u  models.User
		ok bool
	)
	r.s.view(func(d *memoryData) { u, ok = d.users[id] })
	if !ok {
		return nil, apperr.NotFound("user")
	}
	return &u, nil
}

func (r *memUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	var found *models.User
	r.s.view(func(d *memoryData) {
		for _, u := range d.users {
			if u.Username == username {
				u := u
				found = &u
				return
			}
		}
	})
	if found == nil {
		return nil, apperr.NotFound("user")
	}
	return found, nil
}

func (r *memUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	exists := false
	r.s.view(func(d *memoryData) {
		for _, u := range d.users {
			if u.Username == username || u.Email == email {
				exists = true
				return
			}
		}
	})
	return exists, nil
}

func (r *memUsers) Count(context.Context) (int64, error) {
	var n int64
	r.s.view(func(d *memoryData) { n = int64(len(d.users)) })
	return n, nil
}

type memCategories struct{ s *MemoryStore }

func (r *memCategories) List(context.Context) ([]models.Category, error) {
	var out []models.Category
	r.s.view(func(d *memoryData) {
		for _, c := range d.categories {
			out = append(out, c)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memCategories) Get(_ context.Context, id uint) (*models.Category, error) {
	var (
		c  models.Category
		ok bool
	)
	r.s.view(func(d *memoryData) { c, ok = d.categories[id] })
	if !ok {
		return nil, apperr.NotFound("category")
	}
	return &c, nil
}

func (r *memCategories) nameTaken(d *memoryData, name string, except uint) bool {
	for id, c := range d.categories {
		if id != except && c.Name == name {
			return true
		}
	}
	return false
}

func (r *memCategories) Create(_ context.Context, c *models.Category) error {
	return r.s.update(func(d *memoryData) error {
		if r.nameTaken(d, c.Name, 0) {
			return apperr.Duplicate("category name")
		}
		c.ID = d.next("categories")
		stamp(&c.CreatedAt)
		d.categories[c.ID] = *c
		return nil
	})
}

func (r *memCategories) Update(_ context.Context, c *models.Category) error {
	return r.s.update(func(d *memoryData) error {
		existing, ok := d.categories[c.ID]
		if !ok {
			return apperr.NotFound("category")
		}
		if r.nameTaken(d, c.Name, c.ID) {
			return apperr.Duplicate("category name")
		}
		existing.Name = c.Name
		existing.Description = c.Description
		d.categories[c.ID] = existing
		return nil
	})
}

func (r *memCategories) Delete(_ context.Context, id uint) error {
	return r.s.update(func(d *memoryData) error {
		if _, ok := d.categories[id]; !ok {
			return apperr.NotFound("category")
		}
		delete(d.categories, id)
		return nil
	})
}

func (r *memCategories) CountProducts(_ context.Context, id uint) (int64, error) {
	var n int64
	r.s.view(func(d *memoryData) {
		for _, p := range d.products {
			if p.CategoryID != nil && *p.CategoryID == id {
				n++
			}
		}
	})
	return n, nil
}

type memProducts struct{ s *MemoryStore }

func withCategoryName(d *memoryData, p models.Product) models.Product {
	p.CategoryName = ""
	if p.CategoryID != nil {
		if c, ok := d.categories[*p.CategoryID]; ok {
			p.CategoryName = c.Name
		}
	}
	return p
}

func newestFirst(ai, bi uint, at, bt time.Time) bool {
	if !at.Equal(bt) {
		return at.After(bt)
	}
	return ai > bi
}

func (r *memProducts) Find(_ context.Context, f models.ProductFilter) ([]models.Product, error) {
	term := strings.ToLower(strings.TrimSpace(f.Term))
	var out []models.Product
	r.s.view(func(d *memoryData) {
		for _, p := range d.products {
			if f.InStockOnly && p.Stock <= 0 {
				continue
			}
			if term != "" && !strings.Contains(strings.ToLower(p.Name), term) {
				continue
			}
			if f.CategoryID != 0 && (p.CategoryID == nil || *p.CategoryID != f.CategoryID) {
				continue
			}
			out = append(out, withCategoryName(d, p))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *memProducts) Get(_ context.Context, id uint) (*models.Product, error) {
	var (
		p  models.Product
		ok bool
	)
	r.s.view(func(d *memoryData) {
		p, ok = d.products[id]
		if ok {
			p = withCategoryName(d, p)
		}
	})
	if !ok {
		return nil, apperr.NotFound("product")
	}
	return &p, nil
}

func (r *memProducts) Create(_ context.Context, p *models.Product) error {
	return r.s.update(func(d *memoryData) error {
		p.ID = d.next("products")
		stamp(&p.CreatedAt)
		stored := *p
		stored.CategoryName = ""
		d.products[p.ID] = stored
		return nil
	})
}

func (r *memProducts) Update(_ context.Context, p *models.Product) error {
	return r.s.update(func(d *memoryData) error {
		existing, ok := d.products[p.ID]
		if !ok {
			return apperr.NotFound("product")
		}
		existing.Name = p.Name
		existing.Description = p.Description
		existing.Price = p.Price
		existing.Stock = p.Stock
		existing.CategoryID = p.CategoryID
		existing.ImageURL = p.ImageURL
		d.products[p.ID] = existing
		return nil
	})
}

func (r *memProducts) Delete(_ context.Context, id uint) error {
	return r.s.update(func(d *memoryData) error {
		if _, ok := d.products[id]; !ok {
			return apperr.NotFound("product")
		}
		delete(d.products, id)
		return nil
	})
}

func (r *memProducts) DecrementStock(_ context.Context, id uint, qty int) (bool, error) {
	ok := false
	err := r.s.update(func(d *memoryData) error {
		p, found := d.products[id]
		if !found || p.Stock < qty {
			return nil
		}
		p.Stock -= qty
		d.products[id] = p
		ok = true
		return nil
	})
	return ok, err
}

func (r *memProducts) Count(context.Context) (int64, error) {
	var n int64
	r.s.view(func(d *memoryData) { n = int64(len(d.products)) })
	return n, nil
}

type memCarts struct{ s *MemoryStore }

func (r *memCarts) Lines(_ context.Context, userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	r.s.view(func(d *memoryData) {
		for _, item := range d.cart {
			if item.UserID != userID {
				continue
			}
			p, ok := d.products[item.ProductID]
			if !ok {
				continue
			}
			lines = append(lines, models.CartLine{
				ID:        item.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Name:      p.Name,
				Price:     p.Price,
				Stock:     p.Stock,
				ImageURL:  p.ImageURL,
			})
		}
	})
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (r *memCarts) Find(_ context.Context, userID, productID uint) (*models.CartItem, error) {
	var found *models.CartItem
	r.s.view(func(d *memoryData) {
		for _, item := range d.cart {
			if item.UserID == userID && item.ProductID == productID {
				item := item
				found = &item
				return
			}
		}
	})
	if found == nil {
		return nil, apperr.NotFound("cart item")
	}
	return found, nil
}

func (r *memCarts) Create(_ context.Context, item *models.CartItem) error {
	return r.s.update(func(d *memoryData) error {
		for _, existing := range d.cart {
			if existing.UserID == item.UserID && existing.ProductID == item.ProductID {
				return apperr.Duplicate("cart item")
			}
		}
		item.ID = d.next("cart_items")
		stamp(&item.CreatedAt)
		d.cart[item.ID] = *item
		return nil
	})
}

func (r *memCarts) modify(userID, itemID uint, fn func(item *models.CartItem)) error {
	return r.s.update(func(d *memoryData) error {
		item, ok := d.cart[itemID]
		if !ok || item.UserID != userID {
			return apperr.NotFound("cart item")
		}
		fn(&item)
		d.cart[itemID] = item
		return nil
	})
}

func (r *memCarts) AddQuantity(_ context.Context, userID, itemID uint, delta int) error {
	return r.modify(userID, itemID, func(item *models.CartItem) { item.Quantity += delta })
}

func (r *memCarts) SetQuantity(_ context.Context, userID, itemID uint, qty int) error {
	return r.modify(userID, itemID, func(item *models.CartItem) { item.Quantity = qty })
}

func (r *memCarts) Delete(_ context.Context, userID, itemID uint) error {
	return r.s.update(func(d *memoryData) error {
		item, ok := d.cart[itemID]
		if !ok || item.UserID != userID {
			return apperr.NotFound("cart item")
		}
		delete(d.cart, itemID)
		return nil
	})
}

func (r *memCarts) Clear(_ context.Context, userID uint) error {
	return r.s.update(func(d *memoryData) error {
		for id, item := range d.cart {
			if item.UserID == userID {
				delete(d.cart, id)
			}
		}
		return nil
	})
}

func (r *memCarts) DeleteByProduct(_ context.Context, productID uint) error {
	return r.s.update(func(d *memoryData) error {
		for id, item := range d.cart {
			if item.ProductID == productID {
				delete(d.cart, id)
			}
		}
		return nil
	})
}

type memOrders struct{ s *MemoryStore }

func (r *memOrders) Create(_ context.Context, o *models.Order) error {
	return r.s.update(func(d *memoryData) error {
		if o.Status == "" {
			o.Status = models.OrderStatusPending
		}
		o.ID = d.next("orders")
		stamp(&o.CreatedAt)
		o.UpdatedAt = o.CreatedAt
		stored := *o
		stored.Username = ""
		d.orders[o.ID] = stored
		return nil
	})
}

func (r *memOrders) CreateItem(_ context.Context, item *models.OrderItem) error {
	return r.s.update(func(d *memoryData) error {
		if _, ok := d.orders[item.OrderID]; !ok {
			return apperr.NotFound("order")
		}
		item.ID = d.next("order_items")
		d.orderItems[item.ID] = *item
		return nil
	})
}

func withUsername(d *memoryData, o models.Order) models.Order {
	if u, ok := d.users[o.UserID]; ok {
		o.Username = u.Username
	}
	return o
}

func (r *memOrders) Get(_ context.Context, id uint) (*models.Order, error) {
	var (
		o  models.Order
		ok bool
	)
	r.s.view(func(d *memoryData) {
		o, ok = d.orders[id]
		if ok {
			o = withUsername(d, o)
		}
	})
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return &o, nil
}

func (r *memOrders) collect(match func(o models.Order) bool) []models.Order {
	var out []models.Order
	r.s.view(func(d *memoryData) {
		for _, o := range d.orders {
			if match(o) {
				out = append(out, withUsername(d, o))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return newestFirst(out[i].ID, out[j].ID, out[i].CreatedAt, out[j].CreatedAt)
	})
	return out
}

func (r *memOrders) ListByUser(_ context.Context, userID uint) ([]models.Order, error) {
	return r.collect(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (r *memOrders) List(_ context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	orders := r.collect(func(o models.Order) bool { return status == "" || o.Status == status })
	if limit > 0 && len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}

func (r *memOrders) Lines(_ context.Context, orderID uint) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	r.s.view(func(d *memoryData) {
		for _, item := range d.orderItems {
			if item.OrderID != orderID {
				continue
			}
			line := models.OrderLine{
				ID:        item.ID,
				OrderID:   item.OrderID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Price,
			}
			if p, ok := d.products[item.ProductID]; ok {
				line.Name = p.Name
				line.ImageURL = p.ImageURL
			}
			lines = append(lines, line)
		}
	})
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (r *memOrders) UpdateStatus(_ context.Context, id uint, status models.OrderStatus) error {
	return r.s.update(func(d *memoryData) error {
		o, ok := d.orders[id]
		if !ok {
			return apperr.NotFound("order")
		}
		o.Status = status
		o.UpdatedAt = time.Now()
		d.orders[id] = o
		return nil
	})
}

func (r *memOrders) Count(context.Context) (int64, error) {
	var n int64
	r.s.view(func(d *memoryData) { n = int64(len(d.orders)) })
	return n, nil
}

func (r *memOrders) CountByProduct(_ context.Context, productID uint) (int64, error) {
	var n int64
	r.s.view(func(d *memoryData) {
		for _, item := range d.orderItems {
			if item.ProductID == productID {
				n++
			}
		}
	})
	return n, nil
}

type memReports struct{ s *MemoryStore }

func (r *memReports) Revenue(context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	r.s.view(func(d *memoryData) {
		for _, o := range d.orders {
			if o.Status == models.OrderStatusCompleted {
				total = total.Add(o.TotalAmount)
			}
		}
	})
	return total, nil
}

func (r *memReports) DailySales(_ context.Context, since time.Time) ([]models.DailySales, error) {
	byDay := make(map[string]*models.DailySales)
	r.s.view(func(d *memoryData) {
		for _, o := range d.orders {
			if o.Status != models.OrderStatusCompleted || o.CreatedAt.Before(since) {
				continue
			}
			day := o.CreatedAt.Format("2006-01-02")
			s, ok := byDay[day]
			if !ok {
				s = &models.DailySales{Day: day, Revenue: decimal.Zero}
				byDay[day] = s
			}
			s.OrderCount++
			s.Revenue = s.Revenue.Add(o.TotalAmount)
		}
	})

	out := make([]models.DailySales, 0, len(byDay))
	for _, s := range byDay {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day > out[j].Day })
	return out, nil
}

func (r *memReports) TopProducts(_ context.Context, limit int) ([]models.TopProduct, error) {
	sold := make(map[uint]int64)
	names := make(map[uint]string)
	r.s.view(func(d *memoryData) {
		for _, item := range d.orderItems {
			o, ok := d.orders[item.OrderID]
			if !ok || o.Status != models.OrderStatusCompleted {
				continue
			}
			p, ok := d.products[item.ProductID]
			if !ok {
				continue
			}
			sold[item.ProductID] += int64(item.Quantity)
			names[item.ProductID] = p.Name
		}
	})

	out := make([]models.TopProduct, 0, len(sold))
	for id, n := range sold {
		out = append(out, models.TopProduct{ProductID: id, Name: names[id], TotalSold: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSold != out[j].TotalSold {
			return out[i].TotalSold > out[j].TotalSold
		}
		return out[i].ProductID < out[j].ProductID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
