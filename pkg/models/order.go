package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses lists every status in lifecycle order.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
	OrderStatusShipped,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

var statusRank = map[OrderStatus]int{
	OrderStatusPending:   0,
	OrderStatusPaid:      1,
	OrderStatusShipped:   2,
	OrderStatusCompleted: 3,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range OrderStatuses {
		if status == known {
			return status, nil
		}
	}
	return "", fmt.Errorf("invalid order status %q", s)
}

func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo allows moves forward along pending, paid, shipped,
// completed (skipping is fine) and cancellation of any open order.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	return ok && to > from
}

type Order struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	UserID      uint            `gorm:"not null;index" json:"user_id"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"total_amount"`
	Status      OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	Address     string          `gorm:"type:text;not null" json:"address"`
	Phone       string          `gorm:"type:varchar(20);not null" json:"phone"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`

	// Filled by the admin listing join against users.
	Username string `gorm:"->;-:migration" json:"username,omitempty"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// OrderLine is an order item joined with the product's display fields.
type OrderLine struct {
	ID        uint            `json:"id"`
	OrderID   uint            `json:"order_id"`
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderDetail is an order with its lines.
type OrderDetail struct {
	Order Order
	Lines []OrderLine
}
