package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/example/shopfront/pkg/admin"
	"github.com/example/shopfront/pkg/auth"
	"github.com/example/shopfront/pkg/cart"
	"github.com/example/shopfront/pkg/catalog"
	"github.com/example/shopfront/pkg/checkout"
	"github.com/example/shopfront/pkg/config"
	"github.com/example/shopfront/pkg/images"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/notify"
	"github.com/example/shopfront/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testShop struct {
	store   *repository.MemoryStore
	handler http.Handler
}

func newTestShop(t *testing.T) *testShop {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Name: "shopfront"},
		Upload: config.UploadConfig{
			Dir:               t.TempDir(),
			URLPrefix:         "uploads/products",
			MaxBytes:          1 << 20,
			AllowedExtensions: []string{"png", "jpg", "jpeg", "gif"},
			MaxDimension:      800,
			Quality:           85,
			DefaultImage:      repository.DefaultProductImage,
		},
		Session: config.SessionConfig{CookieName: "shop_session", TTL: time.Hour},
	}
	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	audit := repository.NewMemoryAudit()
	imgs, err := images.NewStore(&cfg.Upload)
	require.NoError(t, err)

	gw, err := NewGateway(cfg, logger, Services{
		Store:    store,
		Catalog:  catalog.NewService(store),
		Cart:     cart.NewService(store),
		Checkout: checkout.NewService(store, notify.Discard{}, audit, logger),
		Admin:    admin.NewService(store, imgs, notify.Discard{}, audit, logger),
		Auth:     auth.NewService(store, logger),
		Sessions: auth.NewMemorySessions(time.Hour),
	})
	require.NoError(t, err)
	gw.SetupRoutes()
	return &testShop{store: store, handler: gw.Handler()}
}

func (s *testShop) createUser(t *testing.T, username, password string, isAdmin bool) *models.User {
	t.Helper()
	hash, err := auth.HashPassword(password)
	require.NoError(t, err)
	u := &models.User{Username: username, Email: username + "@example.com", PasswordHash: hash, IsAdmin: isAdmin}
	require.NoError(t, s.store.Users().Create(context.Background(), u))
	return u
}

func (s *testShop) createProduct(t *testing.T, name string, price int64, stock int) *models.Product {
	t.Helper()
	p := &models.Product{Name: name, Price: decimal.NewFromInt(price), Stock: stock, ImageURL: repository.DefaultProductImage}
	require.NoError(t, s.store.Products().Create(context.Background(), p))
	return p
}

// client is a browser stand-in that keeps cookies between requests.
type client struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func (s *testShop) client(t *testing.T) *client {
	return &client{t: t, handler: s.handler, cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, target string, form url.Values) *httptest.ResponseRecorder {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}

	w := httptest.NewRecorder()
	c.handler.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		c.cookies[ck.Name] = ck
	}
	return w
}

func (c *client) get(target string) *httptest.ResponseRecorder {
	return c.do(http.MethodGet, target, nil)
}

func (c *client) post(target string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	return c.do(http.MethodPost, target, form)
}

func (c *client) login(username, password string) {
	c.t.Helper()
	w := c.post("/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(c.t, http.StatusFound, w.Code)
	require.Equal(c.t, "/", w.Header().Get("Location"))
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, location, w.Header().Get("Location"))
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	shop := newTestShop(t)
	w := shop.client(t).get("/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])
}

func TestNotFoundPage(t *testing.T) {
	shop := newTestShop(t)
	w := shop.client(t).get("/nowhere")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "does not exist")
}

func TestStaticAssets(t *testing.T) {
	shop := newTestShop(t)
	w := shop.client(t).get("/static/css/style.css")
	assert.Equal(t, http.StatusOK, w.Code)

	w = shop.client(t).get("/static/" + repository.DefaultProductImage)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStorefrontPages(t *testing.T) {
	shop := newTestShop(t)
	mug := shop.createProduct(t, "Blue Mug", 50, 3)
	shop.createProduct(t, "Sold Out Lamp", 80, 0)
	c := shop.client(t)

	w := c.get("/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Blue Mug")
	assert.NotContains(t, w.Body.String(), "Sold Out Lamp")

	w = c.get("/products?search=mug")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Blue Mug")

	w = c.get(fmt.Sprintf("/product/%d", mug.ID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "50.00")

	assertRedirect(t, c.get("/product/999"), "/products")
	w = c.get("/products")
	assert.Contains(t, w.Body.String(), "Product not found")
}

func TestRegisterLoginLogout(t *testing.T) {
	shop := newTestShop(t)
	c := shop.client(t)

	w := c.post("/register", url.Values{
		"username": {"amy"},
		"email":    {"amy@example.com"},
		"password": {"secret1"},
	})
	assertRedirect(t, w, "/login")
	assert.Contains(t, c.get("/login").Body.String(), "Registration successful, please log in")

	w = c.post("/register", url.Values{
		"username": {"amy"},
		"email":    {"other@example.com"},
		"password": {"secret1"},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "already exists")

	w = c.post("/register", url.Values{
		"username": {"bob"},
		"email":    {"bob@example.com"},
		"password": {strings.Repeat("p", 80)},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Password must be at most 72 bytes")

	w = c.post("/login", url.Values{"username": {"amy"}, "password": {"wrong-pass"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid username or password")

	c.login("amy", "secret1")
	w = c.get("/")
	assert.Contains(t, w.Body.String(), "Login successful")
	assert.Contains(t, w.Body.String(), "amy")

	assert.Equal(t, http.StatusOK, c.get("/cart").Code)

	assertRedirect(t, c.get("/logout"), "/")
	assert.Contains(t, c.get("/").Body.String(), "Logged out")
	assertRedirect(t, c.get("/cart"), "/login")
}

func TestSessionCookie(t *testing.T) {
	shop := newTestShop(t)
	shop.createUser(t, "amy", "secret1", false)
	c := shop.client(t)

	c.login("amy", "secret1")
	ck := c.cookies["shop_session"]
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, ck.SameSite)
	assert.Equal(t, 3600, ck.MaxAge)

	// A stale token is treated as anonymous.
	stranger := shop.client(t)
	stranger.cookies["shop_session"] = &http.Cookie{Name: "shop_session", Value: "forged"}
	assertRedirect(t, stranger.get("/orders"), "/login")
}

func TestAdminGuard(t *testing.T) {
	shop := newTestShop(t)
	shop.createUser(t, "amy", "secret1", false)

	anon := shop.client(t)
	assertRedirect(t, anon.get("/admin"), "/login")

	c := shop.client(t)
	c.login("amy", "secret1")
	assertRedirect(t, c.get("/admin"), "/")
	assert.Contains(t, c.get("/").Body.String(), "Access denied")

	w := c.post("/admin/order/update_status", url.Values{"order_id": {"1"}, "status": {"paid"}})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, false, decodeJSON(t, w)["success"])
}

func TestCartAndCheckout(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.createUser(t, "amy", "secret1", false)
	shop.createUser(t, "bob", "secret2", false)
	mug := shop.createProduct(t, "Blue Mug", 50, 5)

	c := shop.client(t)
	c.login("amy", "secret1")

	productID := fmt.Sprint(mug.ID)
	w := c.post("/add_to_cart", url.Values{"product_id": {productID}, "quantity": {"2"}})
	assertRedirect(t, w, "/cart")

	w = c.get("/cart")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Product added to cart")
	assert.Contains(t, w.Body.String(), "100.00")

	w = c.post("/add_to_cart", url.Values{"product_id": {productID}, "quantity": {"100"}})
	assertRedirect(t, w, "/product/"+productID)
	assert.Contains(t, c.get("/product/"+productID).Body.String(), "Not enough stock")

	assert.Equal(t, http.StatusOK, c.get("/checkout").Code)

	w = c.post("/checkout", url.Values{"address": {"1 Main St"}, "phone": {"call me"}})
	assertRedirect(t, w, "/checkout")

	w = c.post("/checkout", url.Values{"address": {"1 Main St"}, "phone": {"555-0100"}})
	assertRedirect(t, w, "/orders")
	w = c.get("/orders")
	assert.Contains(t, w.Body.String(), "Order placed! A confirmation email has been sent")

	got, err := shop.store.Products().Get(ctx, mug.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Stock)

	orders, err := shop.store.Orders().List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	orderPath := fmt.Sprintf("/order/%d", orders[0].ID)
	assert.Equal(t, http.StatusOK, c.get(orderPath).Code)

	assertRedirect(t, c.get("/checkout"), "/cart")

	bob := shop.client(t)
	bob.login("bob", "secret2")
	assertRedirect(t, bob.get(orderPath), "/orders")
	assert.Contains(t, bob.get("/orders").Body.String(), "Order not found")
}

func TestUpdateCart(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	amy := shop.createUser(t, "amy", "secret1", false)
	mug := shop.createProduct(t, "Blue Mug", 50, 5)
	item := &models.CartItem{UserID: amy.ID, ProductID: mug.ID, Quantity: 1}
	require.NoError(t, shop.store.Carts().Create(ctx, item))

	c := shop.client(t)
	c.login("amy", "secret1")

	w := c.post("/update_cart", url.Values{"cart_item_id": {fmt.Sprint(item.ID)}, "quantity": {"4"}})
	assertRedirect(t, w, "/cart")
	lines, err := shop.store.Carts().Lines(ctx, amy.ID)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)

	w = c.post("/update_cart", url.Values{"cart_item_id": {fmt.Sprint(item.ID)}, "quantity": {"0"}})
	assertRedirect(t, w, "/cart")
	lines, err = shop.store.Carts().Lines(ctx, amy.ID)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func placeOrder(t *testing.T, shop *testShop, user *models.User, p *models.Product, qty int) uint {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, shop.store.Carts().Create(ctx, &models.CartItem{UserID: user.ID, ProductID: p.ID, Quantity: qty}))
	svc := checkout.NewService(shop.store, notify.Discard{}, nil, zap.NewNop())
	id, err := svc.PlaceOrder(ctx, user, "1 Main St", "555-0100")
	require.NoError(t, err)
	return id
}

func TestAdminUpdateStatus(t *testing.T) {
	shop := newTestShop(t)
	shop.createUser(t, "root", "admin123", true)
	amy := shop.createUser(t, "amy", "secret1", false)
	mug := shop.createProduct(t, "Blue Mug", 50, 5)
	orderID := placeOrder(t, shop, amy, mug, 1)

	c := shop.client(t)
	c.login("root", "admin123")

	w := c.post("/admin/order/update_status", url.Values{"order_id": {fmt.Sprint(orderID)}, "status": {"shipped"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "shipped", body["status"])

	w = c.post("/admin/order/update_status", url.Values{"order_id": {fmt.Sprint(orderID)}, "status": {"pending"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, false, decodeJSON(t, w)["success"])

	w = c.post("/admin/order/update_status", url.Values{"order_id": {"999"}, "status": {"paid"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = c.get(fmt.Sprintf("/admin/order/%d", orderID))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "update_status by root")
}

func TestAdminPages(t *testing.T) {
	shop := newTestShop(t)
	shop.createUser(t, "root", "admin123", true)
	amy := shop.createUser(t, "amy", "secret1", false)
	mug := shop.createProduct(t, "Blue Mug", 50, 5)
	orderID := placeOrder(t, shop, amy, mug, 2)

	c := shop.client(t)
	c.login("root", "admin123")

	for _, path := range []string{
		"/admin",
		"/admin/products",
		fmt.Sprintf("/admin/product/edit/%d", mug.ID),
		"/admin/orders",
		"/admin/orders?status=pending",
		fmt.Sprintf("/admin/order/%d", orderID),
		"/admin/categories",
		"/admin/stats",
	} {
		t.Run(path, func(t *testing.T) {
			w := c.get(path)
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		})
	}

	assertRedirect(t, c.get("/admin/orders?status=lost"), "/admin/orders")
}

func TestAdminProducts(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.createUser(t, "root", "admin123", true)
	amy := shop.createUser(t, "amy", "secret1", false)
	c := shop.client(t)
	c.login("root", "admin123")

	w := c.post("/admin/products", url.Values{"name": {"Teapot"}, "price": {"abc"}, "stock": {"1"}})
	assertRedirect(t, w, "/admin/products")
	assert.Contains(t, c.get("/admin/products").Body.String(), "Price must be a number")

	w = c.post("/admin/products", url.Values{"name": {"Teapot"}, "description": {"Glazed"}, "price": {"19.90"}, "stock": {"4"}})
	assertRedirect(t, w, "/admin/products")

	products, err := shop.store.Products().Find(ctx, models.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	teapot := products[0]
	assert.True(t, decimal.RequireFromString("19.90").Equal(teapot.Price))
	assert.Equal(t, repository.DefaultProductImage, teapot.ImageURL)

	w = c.post(fmt.Sprintf("/admin/product/edit/%d", teapot.ID), url.Values{"name": {"Big Teapot"}, "price": {"24.00"}, "stock": {"2"}})
	assertRedirect(t, w, "/admin/products")
	got, err := shop.store.Products().Get(ctx, teapot.ID)
	require.NoError(t, err)
	assert.Equal(t, "Big Teapot", got.Name)
	assert.Equal(t, 2, got.Stock)

	placeOrder(t, shop, amy, got, 1)
	w = c.post(fmt.Sprintf("/admin/product/delete/%d", teapot.ID), nil)
	assertRedirect(t, w, "/admin/products")
	assert.Contains(t, c.get("/admin/products").Body.String(), "Cannot delete product")

	lamp := shop.createProduct(t, "Lamp", 80, 1)
	assertRedirect(t, c.post(fmt.Sprintf("/admin/product/delete/%d", lamp.ID), nil), "/admin/products")
	_, err = shop.store.Products().Get(ctx, lamp.ID)
	assert.Error(t, err)
}

func TestAdminCategories(t *testing.T) {
	shop := newTestShop(t)
	ctx := context.Background()
	shop.createUser(t, "root", "admin123", true)
	c := shop.client(t)
	c.login("root", "admin123")

	w := c.post("/admin/category/add", url.Values{"name": {"Kitchen"}, "description": {"Pots"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["success"])
	id := uint(body["id"].(float64))

	w = c.post("/admin/category/add", url.Values{"name": {"Kitchen"}})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = c.post(fmt.Sprintf("/admin/category/edit/%d", id), url.Values{"name": {"Cookware"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeJSON(t, w)["success"])

	p := &models.Product{Name: "Pan", Price: decimal.NewFromInt(30), Stock: 1, CategoryID: &id}
	require.NoError(t, shop.store.Products().Create(ctx, p))

	w = c.post(fmt.Sprintf("/admin/category/delete/%d", id), nil)
	assertRedirect(t, w, "/admin/categories")
	assert.Contains(t, c.get("/admin/categories").Body.String(), "Cannot delete category: products are using it")
}
