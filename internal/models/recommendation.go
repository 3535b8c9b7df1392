package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeAction is the direction of a proposed trade.
type TradeAction string

const (
	TradeBuy  TradeAction = "BUY"
	TradeSell TradeAction = "SELL"
)

// Trade is one proposed buy or sell order inside a recommendation.
type Trade struct {
	Action    TradeAction     `json:"action"`
	Symbol    string          `json:"symbol"`
	Quantity  decimal.Decimal `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
	Reasoning string          `json:"reasoning"`
}

// Recommendation lifecycle states.
const (
	RecommendationPending   = "pending"
	RecommendationExecuting = "executing"
	RecommendationExecuted  = "executed"
	RecommendationFailed    = "failed"
)

// Recommendation is a rebalancing proposal produced by a decision source.
// The audit ledger records its creation and every status transition; this
// struct itself is mutable only in its Status/ExecutedAt fields.
type Recommendation struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	CreatedAt      time.Time         `json:"created_at"`
	Status         string            `json:"status"`
	PrimaryConcern string            `json:"primary_concern,omitempty"`
	RiskLevel      string            `json:"risk_level,omitempty"`
	Trades         []Trade           `json:"trades"`
	Reasoning      string            `json:"reasoning"`
	Confidence     float64           `json:"confidence"`
	ExpectedImpact map[string]string `json:"expected_impact,omitempty"`
	ExecutedAt     *time.Time        `json:"executed_at,omitempty"`
}

// AffectedSymbols returns the symbols touched by the recommendation's trades,
// in trade order. Duplicates are preserved.
func (r Recommendation) AffectedSymbols() []string {
	symbols := make([]string, 0, len(r.Trades))
	for _, t := range r.Trades {
		symbols = append(symbols, t.Symbol)
	}
	return symbols
}
