// Package advisor produces portfolio rebalancing recommendations, either
// through a rule-based drift engine or an LLM backed by that engine as a
// fallback.
package advisor

import (
	"context"
	"fmt"
	"sort"

	"github.com/finguard/finguard/internal/models"
	"github.com/shopspring/decimal"
)

// Drift thresholds in percentage points of portfolio value.
const (
	driftActionThreshold   = 2.5
	driftSeverityThreshold = 5.0
)

// DecisionSource produces a rebalancing recommendation for a portfolio.
// A (nil, nil) return means no action is needed.
type DecisionSource interface {
	Propose(ctx context.Context, portfolio models.Portfolio) (*models.Recommendation, error)
}

// Drift describes one category whose allocation has moved outside the
// acceptable band around its target.
type Drift struct {
	Category models.AssetCategory `json:"category"`
	Current  float64              `json:"current"`
	Target   float64              `json:"target"`
	Drift    float64              `json:"drift"`
	Severity string               `json:"severity"`
}

// CalculateAllocations returns the current allocation of the portfolio by
// category, in percent of total value.
func CalculateAllocations(p models.Portfolio) map[models.AssetCategory]float64 {
	allocations := make(map[models.AssetCategory]float64)
	if p.TotalValue.IsZero() {
		return allocations
	}
	total, _ := p.TotalValue.Float64()
	for _, h := range p.Holdings {
		value, _ := h.Value().Float64()
		allocations[h.Category] += value / total * 100
	}
	return allocations
}

// DetectDrift compares current allocations against targets and returns the
// categories that have drifted past the action threshold, ordered by
// category name for stable output.
func DetectDrift(current, target map[models.AssetCategory]float64) []Drift {
	categories := make([]models.AssetCategory, 0, len(target))
	for c := range target {
		categories = append(categories, c)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })

	var drifts []Drift
	for _, category := range categories {
		targetPct := target[category]
		currentPct := current[category]
		drift := currentPct - targetPct
		if abs(drift) <= driftActionThreshold {
			continue
		}
		severity := "medium"
		if abs(drift) > driftSeverityThreshold {
			severity = "high"
		}
		drifts = append(drifts, Drift{
			Category: category,
			Current:  currentPct,
			Target:   targetPct,
			Drift:    drift,
			Severity: severity,
		})
	}
	return drifts
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func formatPct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func mulFloat(d decimal.Decimal, f float64) decimal.Decimal {
	return d.Mul(decimal.NewFromFloat(f))
}
