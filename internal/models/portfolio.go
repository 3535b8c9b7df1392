package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetCategory groups holdings for allocation targets.
type AssetCategory string

const (
	CategoryStocks AssetCategory = "stocks"
	CategoryCrypto AssetCategory = "crypto"
	CategoryBonds  AssetCategory = "bonds"
	CategoryETFs   AssetCategory = "etfs"
)

// ValidCategory reports whether c is one of the supported asset categories.
func ValidCategory(c AssetCategory) bool {
	switch c {
	case CategoryStocks, CategoryCrypto, CategoryBonds, CategoryETFs:
		return true
	}
	return false
}

// Holding is a single asset position within a portfolio.
type Holding struct {
	ID               string          `json:"id"`
	Symbol           string          `json:"symbol"`
	Name             string          `json:"name"`
	Category         AssetCategory   `json:"category"`
	Quantity         decimal.Decimal `json:"quantity"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	TargetAllocation float64         `json:"target_allocation"`
}

// Value returns the current market value of the holding.
func (h Holding) Value() decimal.Decimal {
	return h.Quantity.Mul(h.CurrentPrice)
}

// Portfolio holds a user's positions and per-category allocation targets.
// Target allocations are percentages that should sum to roughly 100.
type Portfolio struct {
	UserID            string                    `json:"user_id"`
	Name              string                    `json:"name"`
	Holdings          []Holding                 `json:"holdings"`
	TotalValue        decimal.Decimal           `json:"total_value"`
	Currency          string                    `json:"currency"`
	TargetAllocations map[AssetCategory]float64 `json:"target_allocations"`
	CreatedAt         time.Time                 `json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}
