package api

import (
	"fmt"
	"math"

	"github.com/finguard/finguard/internal/models"
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

const allocationSumTolerance = 1.0

// ValidatePortfolio validates an inbound portfolio payload.
func ValidatePortfolio(p *models.Portfolio) error {
	if p.UserID == "" {
		return ValidationError{Field: "user_id", Message: "User ID is required"}
	}

	if len(p.Holdings) == 0 {
		return ValidationError{Field: "holdings", Message: "At least one holding is required"}
	}

	seen := make(map[string]bool, len(p.Holdings))
	for i, h := range p.Holdings {
		if h.Symbol == "" {
			return ValidationError{Field: fmt.Sprintf("holdings[%d].symbol", i), Message: "Symbol is required"}
		}
		if seen[h.Symbol] {
			return ValidationError{Field: fmt.Sprintf("holdings[%d].symbol", i), Message: fmt.Sprintf("Duplicate symbol %s", h.Symbol)}
		}
		seen[h.Symbol] = true

		if !models.ValidCategory(h.Category) {
			return ValidationError{Field: fmt.Sprintf("holdings[%d].category", i), Message: "Category must be one of stocks, crypto, bonds, etfs"}
		}
		if !h.Quantity.IsPositive() {
			return ValidationError{Field: fmt.Sprintf("holdings[%d].quantity", i), Message: "Quantity must be positive"}
		}
		if h.CurrentPrice.IsNegative() {
			return ValidationError{Field: fmt.Sprintf("holdings[%d].current_price", i), Message: "Price cannot be negative"}
		}
	}

	if len(p.TargetAllocations) == 0 {
		return ValidationError{Field: "target_allocations", Message: "Target allocations are required"}
	}

	sum := 0.0
	for category, pct := range p.TargetAllocations {
		if !models.ValidCategory(category) {
			return ValidationError{Field: "target_allocations", Message: fmt.Sprintf("Unknown category %q", category)}
		}
		if pct < 0 || pct > 100 {
			return ValidationError{Field: "target_allocations", Message: fmt.Sprintf("Allocation for %s must be between 0 and 100", category)}
		}
		sum += pct
	}
	if math.Abs(sum-100) > allocationSumTolerance {
		return ValidationError{Field: "target_allocations", Message: fmt.Sprintf("Allocations must sum to 100, got %.1f", sum)}
	}

	return nil
}
