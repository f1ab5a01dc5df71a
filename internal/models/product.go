package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	Image        string          `json:"image,omitempty"`
	CountInStock int             `json:"countInStock"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// StockAdjustment describes one clamped stock decrement.
type StockAdjustment struct {
	ProductID string `json:"product"`
	Requested int    `json:"requested"`
	Applied   int    `json:"applied"`
	Remaining int    `json:"remaining"`
}

// Clamped reports whether less stock was available than requested.
func (a StockAdjustment) Clamped() bool {
	return a.Applied < a.Requested
}

// ClampedDecrement returns the new stock level and the quantity actually removed.
func ClampedDecrement(current, qty int) (remaining, applied int) {
	if qty <= 0 {
		return current, 0
	}
	if current <= 0 {
		return 0, 0
	}
	if qty > current {
		return 0, current
	}
	return current - qty, qty
}
