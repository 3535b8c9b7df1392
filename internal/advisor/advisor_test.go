package advisor

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/models"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func holdingWorth(symbol string, category models.AssetCategory, value float64, price float64) models.Holding {
	p := decimal.NewFromFloat(price)
	return models.Holding{
		ID:           symbol + "-id",
		Symbol:       symbol,
		Category:     category,
		Quantity:     decimal.NewFromFloat(value).Div(p),
		CurrentPrice: p,
	}
}

// driftedPortfolio is worth 100k with crypto at 50% against a 20% target
// and ETFs at 50% against an 80% target.
func driftedPortfolio() models.Portfolio {
	return models.Portfolio{
		UserID:     "user-1",
		Name:       "test",
		Currency:   "USD",
		TotalValue: decimal.NewFromInt(100000),
		Holdings: []models.Holding{
			holdingWorth("BTC", models.CategoryCrypto, 40000, 62000),
			holdingWorth("ETH", models.CategoryCrypto, 10000, 2200),
			holdingWorth("SPY", models.CategoryETFs, 50000, 445.50),
		},
		TargetAllocations: map[models.AssetCategory]float64{
			models.CategoryCrypto: 20,
			models.CategoryETFs:   80,
		},
	}
}

func balancedPortfolio() models.Portfolio {
	return models.Portfolio{
		UserID:     "user-2",
		TotalValue: decimal.NewFromInt(100000),
		Holdings: []models.Holding{
			holdingWorth("SPY", models.CategoryETFs, 50000, 445.50),
			holdingWorth("VBMFX", models.CategoryBonds, 50000, 110.20),
		},
		TargetAllocations: map[models.AssetCategory]float64{
			models.CategoryETFs:  50,
			models.CategoryBonds: 50,
		},
	}
}

func TestCalculateAllocations(t *testing.T) {
	allocations := CalculateAllocations(driftedPortfolio())

	if got := allocations[models.CategoryCrypto]; math.Abs(got-50) > 0.01 {
		t.Errorf("crypto allocation = %v, want 50", got)
	}
	if got := allocations[models.CategoryETFs]; math.Abs(got-50) > 0.01 {
		t.Errorf("etfs allocation = %v, want 50", got)
	}
}

func TestCalculateAllocationsZeroValue(t *testing.T) {
	p := models.Portfolio{TotalValue: decimal.Zero}
	if allocations := CalculateAllocations(p); len(allocations) != 0 {
		t.Errorf("expected empty allocations for zero-value portfolio, got %v", allocations)
	}
}

func TestDetectDrift(t *testing.T) {
	current := map[models.AssetCategory]float64{
		models.CategoryCrypto: 50,
		models.CategoryETFs:   50,
	}
	target := map[models.AssetCategory]float64{
		models.CategoryCrypto: 20,
		models.CategoryETFs:   80,
	}

	drifts := DetectDrift(current, target)
	if len(drifts) != 2 {
		t.Fatalf("expected 2 drifts, got %d", len(drifts))
	}

	// Output is ordered by category name.
	if drifts[0].Category != models.CategoryCrypto || drifts[1].Category != models.CategoryETFs {
		t.Errorf("unexpected drift order: %v, %v", drifts[0].Category, drifts[1].Category)
	}
	if drifts[0].Drift != 30 || drifts[0].Severity != "high" {
		t.Errorf("crypto drift = %+v, want +30 high", drifts[0])
	}
	if drifts[1].Drift != -30 || drifts[1].Severity != "high" {
		t.Errorf("etfs drift = %+v, want -30 high", drifts[1])
	}
}

func TestDetectDriftWithinBand(t *testing.T) {
	current := map[models.AssetCategory]float64{
		models.CategoryStocks: 41.5,
		models.CategoryBonds:  58.5,
	}
	target := map[models.AssetCategory]float64{
		models.CategoryStocks: 40,
		models.CategoryBonds:  60,
	}
	if drifts := DetectDrift(current, target); len(drifts) != 0 {
		t.Errorf("expected no drifts within 2.5%% band, got %v", drifts)
	}
}

func TestDetectDriftSeverity(t *testing.T) {
	current := map[models.AssetCategory]float64{models.CategoryStocks: 44}
	target := map[models.AssetCategory]float64{models.CategoryStocks: 40}

	drifts := DetectDrift(current, target)
	if len(drifts) != 1 || drifts[0].Severity != "medium" {
		t.Fatalf("4%% drift should be medium severity, got %+v", drifts)
	}
}

func TestRebalancerNoActionWhenBalanced(t *testing.T) {
	r := NewRebalancer(market.NewMockData(), testLogger())

	rec, err := r.Propose(context.Background(), balancedPortfolio())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no recommendation for balanced portfolio, got %+v", rec)
	}
}

func TestRebalancerProposesTrades(t *testing.T) {
	r := NewRebalancer(market.NewMockData(), testLogger())

	rec, err := r.Propose(context.Background(), driftedPortfolio())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}
	if rec == nil {
		t.Fatal("expected a recommendation")
	}

	if rec.Status != models.RecommendationPending {
		t.Errorf("status = %q, want pending", rec.Status)
	}
	if rec.ID == "" {
		t.Error("recommendation ID must be set")
	}
	if rec.UserID != "user-1" {
		t.Errorf("user id = %q, want user-1", rec.UserID)
	}
	if rec.RiskLevel != "high" {
		t.Errorf("risk level = %q, want high (drift exceeds 5%%)", rec.RiskLevel)
	}

	// Crypto overweight: sell BTC (vol 0.45) before ETH (vol 0.38) with a
	// 60/40 split of the 30k excess. ETFs underweight: a single buy of SPY.
	if len(rec.Trades) != 3 {
		t.Fatalf("expected 3 trades, got %d: %+v", len(rec.Trades), rec.Trades)
	}

	btc := rec.Trades[0]
	if btc.Action != models.TradeSell || btc.Symbol != "BTC" {
		t.Errorf("first trade = %s %s, want SELL BTC", btc.Action, btc.Symbol)
	}
	if want := decimal.NewFromInt(18000); !btc.Value.Equal(want) {
		t.Errorf("BTC trade value = %s, want %s", btc.Value, want)
	}

	eth := rec.Trades[1]
	if eth.Action != models.TradeSell || eth.Symbol != "ETH" {
		t.Errorf("second trade = %s %s, want SELL ETH", eth.Action, eth.Symbol)
	}
	if want := decimal.NewFromInt(12000); !eth.Value.Equal(want) {
		t.Errorf("ETH trade value = %s, want %s", eth.Value, want)
	}

	spy := rec.Trades[2]
	if spy.Action != models.TradeBuy || spy.Symbol != "SPY" {
		t.Errorf("third trade = %s %s, want BUY SPY", spy.Action, spy.Symbol)
	}
	if want := decimal.NewFromInt(18000); !spy.Value.Equal(want) {
		t.Errorf("SPY trade value = %s, want %s", spy.Value, want)
	}

	if rec.Reasoning == "" {
		t.Error("reasoning must not be empty")
	}
	if rec.ExpectedImpact["risk_reduction"] == "" {
		t.Error("expected impact must include risk_reduction")
	}
}

func TestRebalancerConfidence(t *testing.T) {
	r := NewRebalancer(market.NewMockData(), testLogger())

	rec, err := r.Propose(context.Background(), driftedPortfolio())
	if err != nil {
		t.Fatalf("Propose: %v", err)
	}

	// avg drift 30% caps drift confidence at 1.0; avg volatility of
	// BTC/ETH/SPY is (0.45+0.38+0.15)/3. Combined 0.7 + 0.3*(1-0.3267) = 0.90.
	if math.Abs(rec.Confidence-0.90) > 1e-9 {
		t.Errorf("confidence = %v, want 0.90", rec.Confidence)
	}
	if rec.Confidence < 0 || rec.Confidence > 1 {
		t.Errorf("confidence %v outside [0, 1]", rec.Confidence)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"surrounded by prose", `Here is my answer: {"a": 1} hope it helps`, `{"a": 1}`},
		{"nested objects", `{"a": {"b": 2}}`, `{"a": {"b": 2}}`},
		{"brace inside string", `{"a": "}{"}`, `{"a": "}{"}`},
		{"no object", `no json here`, ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSON(tt.text); got != tt.want {
				t.Errorf("extractJSON(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseDecision(t *testing.T) {
	text := `Analysis follows.
{"action_needed": true, "primary_concern": "crypto overweight", "risk_level": "high",
 "trades": [{"action": "sell", "symbol": "BTC", "quantity": 0.29, "value": 18000, "reasoning": "reduce crypto"}],
 "reasoning": "Crypto exceeds target.", "confidence": 0.82}`

	decision, err := parseDecision(text)
	if err != nil {
		t.Fatalf("parseDecision: %v", err)
	}
	if !decision.ActionNeeded {
		t.Error("action_needed should be true")
	}
	if decision.PrimaryConcern != "crypto overweight" {
		t.Errorf("primary concern = %q", decision.PrimaryConcern)
	}
	if len(decision.Trades) != 1 || decision.Trades[0].Symbol != "BTC" {
		t.Errorf("trades = %+v", decision.Trades)
	}
	if decision.Confidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", decision.Confidence)
	}
}

func TestParseDecisionRejectsBadAction(t *testing.T) {
	text := `{"action_needed": true, "trades": [{"action": "HOLD", "symbol": "BTC"}]}`
	if _, err := parseDecision(text); err == nil {
		t.Fatal("expected error for unknown trade action")
	}
}

func TestParseDecisionNoJSON(t *testing.T) {
	if _, err := parseDecision("I cannot help with that."); err == nil {
		t.Fatal("expected error when response has no JSON")
	}
}
