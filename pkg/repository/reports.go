package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/example/shopfront/pkg/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type gormReports struct{ db *gorm.DB }

var completed = string(models.OrderStatusCompleted)

func (r *gormReports) Revenue(ctx context.Context) (decimal.Decimal, error) {
	sql, args, err := sq.Select("COALESCE(SUM(total_amount), 0)").
		From("orders").
		Where(sq.Eq{"status": completed}).
		ToSql()
	if err != nil {
		return decimal.Zero, err
	}

	var revenue decimal.Decimal
	if err := r.db.WithContext(ctx).Raw(sql, args...).Row().Scan(&revenue); err != nil {
		return decimal.Zero, err
	}
	return revenue, nil
}

func (r *gormReports) DailySales(ctx context.Context, since time.Time) ([]models.DailySales, error) {
	sql, args, err := sq.Select(
		"CAST(DATE(created_at) AS CHAR) AS day",
		"COUNT(*) AS order_count",
		"COALESCE(SUM(total_amount), 0) AS revenue",
	).
		From("orders").
		Where(sq.Eq{"status": completed}).
		Where(sq.GtOrEq{"created_at": since}).
		GroupBy("DATE(created_at)").
		OrderBy("day DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []models.DailySales
	for rows.Next() {
		var d models.DailySales
		if err := rows.Scan(&d.Day, &d.OrderCount, &d.Revenue); err != nil {
			return nil, err
		}
		sales = append(sales, d)
	}
	return sales, rows.Err()
}

func (r *gormReports) TopProducts(ctx context.Context, limit int) ([]models.TopProduct, error) {
	sql, args, err := sq.Select(
		"products.id",
		"products.name",
		"SUM(order_items.quantity) AS total_sold",
	).
		From("order_items").
		Join("products ON products.id = order_items.product_id").
		Join("orders ON orders.id = order_items.order_id").
		Where(sq.Eq{"orders.status": completed}).
		GroupBy("products.id", "products.name").
		OrderBy("total_sold DESC", "products.id").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.WithContext(ctx).Raw(sql, args...).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var top []models.TopProduct
	for rows.Next() {
		var p models.TopProduct
		if err := rows.Scan(&p.ProductID, &p.Name, &p.TotalSold); err != nil {
			return nil, err
		}
		top = append(top, p)
	}
	return top, rows.Err()
}
