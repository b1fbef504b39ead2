// Package admin implements the back-office: products, categories, order
// status and sales reporting.
package admin

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/example/shopfront/pkg/apperr"
	"github.com/example/shopfront/pkg/models"
	"github.com/example/shopfront/pkg/notify"
	"github.com/example/shopfront/pkg/repository"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

const (
	statsWindowDays = 30
	topProducts     = 10
	auditTrailLimit = 20
)

// maxPrice is the largest value a DECIMAL(10,2) price column holds.
var maxPrice = decimal.RequireFromString("99999999.99")

// ImageStore persists product pictures. images.Store implements it.
type ImageStore interface {
	Save(filename string, r io.Reader) (string, error)
	Delete(ref string) error
	IsDefault(ref string) bool
}

type Service struct {
	store    repository.Store
	images   ImageStore
	notifier notify.Notifier
	audit    repository.AuditRecorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store repository.Store, images ImageStore, notifier notify.Notifier, audit repository.AuditRecorder, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		images:   images,
		notifier: notifier,
		audit:    audit,
		logger:   logger,
		now:      time.Now,
	}
}

// ProductInput is the editable part of a product.
type ProductInput struct {
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	CategoryID  *uint
}

// Upload is an optional image sent with a product form.
type Upload struct {
	Filename string
	Body     io.Reader
}

func (s *Service) validateProduct(ctx context.Context, in *ProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return apperr.Validation("product name is required")
	}
	if in.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if in.Price.GreaterThan(maxPrice) {
		return apperr.Validation("price must not exceed %s", maxPrice.StringFixed(2))
	}
	if !in.Price.Equal(in.Price.Round(2)) {
		return apperr.Validation("price must have at most two decimal places")
	}
	if in.Stock < 0 {
		return apperr.Validation("stock must not be negative")
	}
	if in.CategoryID != nil {
		if _, err := s.store.Categories().Get(ctx, *in.CategoryID); err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return apperr.Validation("unknown category")
			}
			return err
		}
	}
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.store.Products().Find(ctx, models.ProductFilter{})
}

func (s *Service) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	return s.store.Products().Get(ctx, id)
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput, upload *Upload) (*models.Product, error) {
	if err := s.validateProduct(ctx, &in); err != nil {
		return nil, err
	}

	imageURL := repository.DefaultProductImage
	if upload != nil {
		ref, err := s.images.Save(upload.Filename, upload.Body)
		if err != nil {
			return nil, err
		}
		imageURL = ref
	}

	p := &models.Product{
		Name:        in.Name,
		Description: in.Description,
		Price:       in.Price,
		Stock:       in.Stock,
		CategoryID:  in.CategoryID,
		ImageURL:    imageURL,
	}
	if err := s.store.Products().Create(ctx, p); err != nil {
		s.removeImage(imageURL)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created", zap.Uint("product_id", p.ID), zap.String("name", p.Name))
	return p, nil
}

// UpdateProduct replaces the product fields. A new upload replaces the image;
// the old file is removed only after the update is stored.
func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductInput, upload *Upload) (*models.Product, error) {
	if err := s.validateProduct(ctx, &in); err != nil {
		return nil, err
	}
	p, err := s.store.Products().Get(ctx, id)
	if err != nil {
		return nil, err
	}

	oldImage := p.ImageURL
	if upload != nil {
		ref, err := s.images.Save(upload.Filename, upload.Body)
		if err != nil {
			return nil, err
		}
		p.ImageURL = ref
	}

	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Stock = in.Stock
	p.CategoryID = in.CategoryID
	if err := s.store.Products().Update(ctx, p); err != nil {
		if p.ImageURL != oldImage {
			s.removeImage(p.ImageURL)
		}
		return nil, err
	}
	if p.ImageURL != oldImage {
		s.removeImage(oldImage)
	}

	s.logger.Info("Product updated", zap.Uint("product_id", p.ID))
	return p, nil
}

// DeleteProduct removes a product and the cart rows pointing at it. Products
// that appear on orders are kept so order history stays intact.
func (s *Service) DeleteProduct(ctx context.Context, id uint) error {
	var imageURL string
	err := s.store.RunInTx(ctx, func(tx repository.Store) error {
		p, err := tx.Products().Get(ctx, id)
		if err != nil {
			return err
		}
		n, err := tx.Orders().CountByProduct(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.Conflict(apperr.CodeProductOrdered, "product has orders and cannot be deleted")
		}
		if err := tx.Carts().DeleteByProduct(ctx, id); err != nil {
			return err
		}
		imageURL = p.ImageURL
		return tx.Products().Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.removeImage(imageURL)
	s.logger.Info("Product deleted", zap.Uint("product_id", id))
	return nil
}

func (s *Service) removeImage(ref string) {
	if s.images.IsDefault(ref) {
		return
	}
	if err := s.images.Delete(ref); err != nil {
		s.logger.Warn("Failed to delete image", zap.String("image", ref), zap.Error(err))
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.store.Categories().List(ctx)
}

func categoryFields(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", apperr.Validation("category name is required")
	}
	return name, strings.TrimSpace(description), nil
}

func (s *Service) CreateCategory(ctx context.Context, name, description string) (*models.Category, error) {
	name, description, err := categoryFields(name, description)
	if err != nil {
		return nil, err
	}
	c := &models.Category{Name: name, Description: description}
	if err := s.store.Categories().Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, id uint, name, description string) error {
	name, description, err := categoryFields(name, description)
	if err != nil {
		return err
	}
	return s.store.Categories().Update(ctx, &models.Category{ID: id, Name: name, Description: description})
}

// DeleteCategory refuses while any product still references the category.
func (s *Service) DeleteCategory(ctx context.Context, id uint) error {
	return s.store.RunInTx(ctx, func(tx repository.Store) error {
		n, err := tx.Categories().CountProducts(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.CategoryInUse()
		}
		return tx.Categories().Delete(ctx, id)
	})
}

// ListOrders lists every order newest first, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, status string) ([]models.Order, error) {
	var filter models.OrderStatus
	if strings.TrimSpace(status) != "" {
		parsed, err := models.ParseOrderStatus(status)
		if err != nil {
			return nil, apperr.Validation("unknown order status %q", status)
		}
		filter = parsed
	}
	return s.store.Orders().List(ctx, filter, 0)
}

// RecentOrders returns the newest n orders of any status.
func (s *Service) RecentOrders(ctx context.Context, n int) ([]models.Order, error) {
	return s.store.Orders().List(ctx, "", n)
}

// OrderView is an order with its lines and recent audit entries.
type OrderView struct {
	models.OrderDetail
	Audit []*repository.AuditLog
}

func (s *Service) OrderDetail(ctx context.Context, id uint) (*OrderView, error) {
	order, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.store.Orders().Lines(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &OrderView{OrderDetail: models.OrderDetail{Order: *order, Lines: lines}}
	if s.audit != nil {
		logs, err := s.audit.GetAuditLogs(ctx, fmt.Sprint(id), auditTrailLimit)
		if err != nil {
			s.logger.Warn("Failed to load audit trail", zap.Uint("order_id", id), zap.Error(err))
		}
		view.Audit = logs
	}
	return view, nil
}

// UpdateStatus moves an order to status. Shipping an order notifies the
// customer; delivery problems never fail the update.
func (s *Service) UpdateStatus(ctx context.Context, actor string, id uint, status string) (*models.Order, error) {
	next, err := models.ParseOrderStatus(status)
	if err != nil {
		return nil, apperr.Validation("unknown order status %q", status)
	}

	var (
		order    *models.Order
		customer *models.User
		previous models.OrderStatus
	)
	err = s.store.RunInTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().Get(ctx, id)
		if err != nil {
			return err
		}
		if !o.Status.CanTransitionTo(next) {
			return apperr.Validation("cannot change order from %s to %s", o.Status, next)
		}
		if err := tx.Orders().UpdateStatus(ctx, id, next); err != nil {
			return err
		}
		u, err := tx.Users().GetByID(ctx, o.UserID)
		if err != nil {
			return err
		}
		previous = o.Status
		o.Status = next
		order, customer = o, u
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Order status updated",
		zap.Uint("order_id", id),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("actor", actor))

	if next == models.OrderStatusShipped {
		s.notifier.Notify(notify.ShipmentNotice(customer.Email, customer.Username, order))
	}
	s.recordAudit(ctx, &repository.AuditLog{
		Service:  "admin",
		Action:   "update_status",
		Entity:   "order",
		EntityID: fmt.Sprint(id),
		Actor:    actor,
		Data:     bson.M{"from": string(previous), "to": string(next)},
	})
	return order, nil
}

func (s *Service) recordAudit(ctx context.Context, log *repository.AuditLog) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("Failed to record audit log",
			zap.String("entity_id", log.EntityID),
			zap.String("action", log.Action),
			zap.Error(err))
	}
}

func (s *Service) Dashboard(ctx context.Context) (*models.Dashboard, error) {
	var (
		d   models.Dashboard
		err error
	)
	if d.ProductCount, err = s.store.Products().Count(ctx); err != nil {
		return nil, err
	}
	if d.OrderCount, err = s.store.Orders().Count(ctx); err != nil {
		return nil, err
	}
	if d.UserCount, err = s.store.Users().Count(ctx); err != nil {
		return nil, err
	}
	if d.Revenue, err = s.store.Reports().Revenue(ctx); err != nil {
		return nil, err
	}
	return &d, nil
}

// Stats is the sales report page.
type Stats struct {
	Daily []models.DailySales
	Top   []models.TopProduct
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	since := s.now().AddDate(0, 0, -statsWindowDays)
	daily, err := s.store.Reports().DailySales(ctx, since)
	if err != nil {
		return nil, err
	}
	top, err := s.store.Reports().TopProducts(ctx, topProducts)
	if err != nil {
		return nil, err
	}
	return &Stats{Daily: daily, Top: top}, nil
}
