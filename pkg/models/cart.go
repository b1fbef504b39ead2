package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"user_id"`
	ProductID uint      `gorm:"not null;uniqueIndex:idx_cart_user_product" json:"product_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

func (CartItem) TableName() string {
	return "cart_items"
}

// CartLine is a cart row joined with the current state of its product.
type CartLine struct {
	ID        uint            `json:"id"`
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Stock     int             `json:"stock"`
	ImageURL  string          `json:"image_url"`
}

func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// CartTotal sums price x quantity over lines.
func CartTotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
	}
	return total
}
