package models

import "github.com/shopspring/decimal"

type Dashboard struct {
	ProductCount int64
	OrderCount   int64
	UserCount    int64
	Revenue      decimal.Decimal
}

type DailySales struct {
	Day        string          `json:"day"`
	OrderCount int64           `json:"order_count"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type TopProduct struct {
	ProductID uint   `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
}
