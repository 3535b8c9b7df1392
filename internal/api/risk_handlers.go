package api

import (
	"math"
	"math/rand"
	"net/http"
	"sort"
	"strings"

	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/models"
	"github.com/finguard/finguard/internal/risk"
	"log/slog"
)

const (
	tradingDaysSimulated = 252
	meanDailyReturn      = 0.0005
)

// RiskHandler computes risk metrics for a stored portfolio.
type RiskHandler struct {
	portfolios PortfolioStore
	market     market.Data
	logger     *slog.Logger
}

// NewRiskHandler creates a risk handler.
func NewRiskHandler(portfolios PortfolioStore, data market.Data, logger *slog.Logger) *RiskHandler {
	return &RiskHandler{portfolios: portfolios, market: data, logger: logger}
}

type holdingAllocation struct {
	Symbol     string  `json:"symbol"`
	Allocation float64 `json:"allocation"`
}

// Analyze handles GET /api/v1/risk/{user_id}. Historical returns are
// simulated from current volatility data; the simulation is deterministic
// for a given portfolio composition.
func (h *RiskHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/v1/risk/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid user ID")
		return
	}

	ctx := r.Context()
	portfolio, err := h.portfolios.Get(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load portfolio", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}
	if portfolio == nil {
		writeError(w, h.logger, http.StatusNotFound, "Portfolio not found")
		return
	}
	if portfolio.TotalValue.IsZero() {
		writeError(w, h.logger, http.StatusUnprocessableEntity, "Portfolio has no value")
		return
	}

	totalValue, _ := portfolio.TotalValue.Float64()

	weights := make([]float64, 0, len(portfolio.Holdings))
	allocations := make([]holdingAllocation, 0, len(portfolio.Holdings))
	portfolioVol := 0.0
	for _, holding := range portfolio.Holdings {
		value, _ := holding.Value().Float64()
		weight := value / totalValue
		weights = append(weights, weight)
		allocations = append(allocations, holdingAllocation{Symbol: holding.Symbol, Allocation: weight * 100})

		vol, err := h.market.Volatility(ctx, holding.Symbol)
		if err != nil {
			h.logger.Error("failed to fetch volatility", "symbol", holding.Symbol, "error", err)
			writeError(w, h.logger, http.StatusBadGateway, "Failed to fetch market data")
			return
		}
		portfolioVol += weight * vol
	}

	returns := simulateReturns(portfolio, portfolioVol)
	metrics := risk.Compute(returns, totalValue)
	concentration := risk.AssessConcentration(weights)

	sort.Slice(allocations, func(i, j int) bool { return allocations[i].Allocation > allocations[j].Allocation })
	top := allocations
	if len(top) > 3 {
		top = top[:3]
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"user_id":       userID,
		"metrics":       metrics,
		"concentration": concentration,
		"top_holdings":  top,
	})
}

// simulateReturns builds a daily return series whose dispersion follows the
// portfolio's weighted volatility. The generator is seeded from the
// portfolio composition so results are stable between requests.
func simulateReturns(portfolio *models.Portfolio, portfolioVol float64) []float64 {
	var seed int64
	for _, h := range portfolio.Holdings {
		for _, c := range h.Symbol {
			seed = seed*31 + int64(c)
		}
	}

	rng := rand.New(rand.NewSource(seed))
	dailyVol := portfolioVol / math.Sqrt(tradingDaysSimulated)

	returns := make([]float64, tradingDaysSimulated)
	for i := range returns {
		returns[i] = meanDailyReturn + rng.NormFloat64()*dailyVol
	}
	return returns
}
