package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"gorm.io/gorm"
)

type gormUsers struct{ db *gorm.DB }

func (r *gormUsers) Create(ctx context.Context, u *models.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return apperr.Duplicate("username or email")
		}
		return err
	}
	return nil
}

func (r *gormUsers) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *gormUsers) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).Take(&u).Error; err != nil {
		return nil, notFound(err, "user")
	}
	return &u, nil
}

func (r *gormUsers) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&n).Error
	return n > 0, err
}

func (r *gormUsers) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error
	return n, err
}

type gormCategories struct{ db *gorm.DB }

func (r *gormCategories) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).Order("name").Find(&categories).Error
	return categories, err
}

func (r *gormCategories) Get(ctx context.Context, id uint) (*models.Category, error) {
	var c models.Category
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, notFound(err, "category")
	}
	return &c, nil
}

func (r *gormCategories) Create(ctx context.Context, c *models.Category) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isDuplicate(err) {
			return apperr.Duplicate("category name")
		}
		return err
	}
	return nil
}

func (r *gormCategories) Update(ctx context.Context, c *models.Category) error {
	res := r.db.WithContext(ctx).Model(&models.Category{}).
		Where("id = ?", c.ID).
		Updates(map[string]interface{}{"name": c.Name, "description": c.Description})
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return apperr.Duplicate("category name")
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (r *gormCategories) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Category{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("category")
	}
	return nil
}

func (r *gormCategories) CountProducts(ctx context.Context, id uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Where("category_id = ?", id).Count(&n).Error
	return n, err
}

type gormProducts struct{ db *gorm.DB }

func (r *gormProducts) withCategory(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Select("products.*, categories.name AS category_name").
		Joins("LEFT JOIN categories ON categories.id = products.category_id")
}

func (r *gormProducts) Find(ctx context.Context, f models.ProductFilter) ([]models.Product, error) {
	q := r.withCategory(ctx)
	if f.InStockOnly {
		q = q.Where("products.stock > ?", 0)
	}
	if term := strings.TrimSpace(f.Term); term != "" {
		q = q.Where("LOWER(products.name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(term))+"%")
	}
	if f.CategoryID != 0 {
		q = q.Where("products.category_id = ?", f.CategoryID)
	}
	q = q.Order("products.created_at DESC").Order("products.id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var products []models.Product
	err := q.Find(&products).Error
	return products, err
}

func (r *gormProducts) Get(ctx context.Context, id uint) (*models.Product, error) {
	var p models.Product
	if err := r.withCategory(ctx).Where("products.id = ?", id).Take(&p).Error; err != nil {
		return nil, notFound(err, "product")
	}
	return &p, nil
}

func (r *gormProducts) Create(ctx context.Context, p *models.Product) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormProducts) Update(ctx context.Context, p *models.Product) error {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{
			"name":        p.Name,
			"description": p.Description,
			"price":       p.Price,
			"stock":       p.Stock,
			"category_id": p.CategoryID,
			"image_url":   p.ImageURL,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product")
	}
	return nil
}

func (r *gormProducts) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Product{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("product")
	}
	return nil
}

func (r *gormProducts) DecrementStock(ctx context.Context, id uint, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ? AND stock >= ?", id, qty).
		UpdateColumn("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *gormProducts) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Product{}).Count(&n).Error
	return n, err
}

type gormCarts struct{ db *gorm.DB }

func (r *gormCarts) Lines(ctx context.Context, userID uint) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := r.db.WithContext(ctx).Table("cart_items").
		Select("cart_items.id, cart_items.product_id, cart_items.quantity, " +
			"products.name, products.price, products.stock, products.image_url").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Where("cart_items.user_id = ?", userID).
		Order("cart_items.id").
		Scan(&lines).Error
	return lines, err
}

func (r *gormCarts) Find(ctx context.Context, userID, productID uint) (*models.CartItem, error) {
	var item models.CartItem
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Take(&item).Error
	if err != nil {
		return nil, notFound(err, "cart item")
	}
	return &item, nil
}

func (r *gormCarts) Create(ctx context.Context, item *models.CartItem) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		if isDuplicate(err) {
			return apperr.Duplicate("cart item")
		}
		return err
	}
	return nil
}

func (r *gormCarts) AddQuantity(ctx context.Context, userID, itemID uint, delta int) error {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
	return affectedOne(res, "cart item")
}

func (r *gormCarts) SetQuantity(ctx context.Context, userID, itemID uint, qty int) error {
	res := r.db.WithContext(ctx).Model(&models.CartItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		UpdateColumn("quantity", qty)
	return affectedOne(res, "cart item")
}

func (r *gormCarts) Delete(ctx context.Context, userID, itemID uint) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", itemID, userID).
		Delete(&models.CartItem{})
	return affectedOne(res, "cart item")
}

func (r *gormCarts) Clear(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&models.CartItem{}).Error
}

func (r *gormCarts) DeleteByProduct(ctx context.Context, productID uint) error {
	return r.db.WithContext(ctx).Where("product_id = ?", productID).Delete(&models.CartItem{}).Error
}

func affectedOne(res *gorm.DB, entity string) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound(entity)
	}
	return nil
}

type gormOrders struct{ db *gorm.DB }

func (r *gormOrders) Create(ctx context.Context, o *models.Order) error {
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	return r.db.WithContext(ctx).Create(o).Error
}

func (r *gormOrders) CreateItem(ctx context.Context, item *models.OrderItem) error {
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *gormOrders) Get(ctx context.Context, id uint) (*models.Order, error) {
	var o models.Order
	err := r.db.WithContext(ctx).Model(&models.Order{}).
		Select("orders.*, users.username").
		Joins("LEFT JOIN users ON users.id = orders.user_id").
		Where("orders.id = ?", id).
		Take(&o).Error
	if err != nil {
		return nil, notFound(err, "order")
	}
	return &o, nil
}

func (r *gormOrders) ListByUser(ctx context.Context, userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&orders).Error
	return orders, err
}

func (r *gormOrders) List(ctx context.Context, status models.OrderStatus, limit int) ([]models.Order, error) {
	query := sq.Select("orders.*", "users.username").
		From("orders").
		Join("users ON users.id = orders.user_id").
		OrderBy("orders.created_at DESC", "orders.id DESC")
	if status != "" {
		query = query.Where(sq.Eq{"orders.status": string(status)})
	}
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, err
	}

	var orders []models.Order
	err = r.db.WithContext(ctx).Raw(sql, args...).Scan(&orders).Error
	return orders, err
}

func (r *gormOrders) Lines(ctx context.Context, orderID uint) ([]models.OrderLine, error) {
	var lines []models.OrderLine
	err := r.db.WithContext(ctx).Table("order_items").
		Select("order_items.id, order_items.order_id, order_items.product_id, order_items.quantity, " +
			"order_items.price, COALESCE(products.name, '') AS name, COALESCE(products.image_url, '') AS image_url").
		Joins("LEFT JOIN products ON products.id = order_items.product_id").
		Where("order_items.order_id = ?", orderID).
		Order("order_items.id").
		Scan(&lines).Error
	return lines, err
}

func (r *gormOrders) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	return affectedOne(res, "order")
}

func (r *gormOrders) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Order{}).Count(&n).Error
	return n, err
}

func (r *gormOrders) CountByProduct(ctx context.Context, productID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OrderItem{}).Where("product_id = ?", productID).Count(&n).Error
	return n, err
}
