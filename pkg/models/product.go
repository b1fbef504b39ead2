package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"type:varchar(255);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Stock       int             `gorm:"not null" json:"stock"`
	CategoryID  *uint           `gorm:"index" json:"category_id,omitempty"`
	ImageURL    string          `gorm:"type:varchar(500)" json:"image_url"`
	CreatedAt   time.Time       `gorm:"index" json:"created_at"`

	// Filled by joins against categories; never written.
	CategoryName string `gorm:"->;-:migration" json:"category_name,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

func (p *Product) InStock() bool {
	return p.Stock > 0
}

// ProductFilter narrows catalog queries. Zero values mean no filter.
type ProductFilter struct {
	Term        string
	CategoryID  uint
	InStockOnly bool
	Limit       int
}
