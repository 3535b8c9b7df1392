package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"log/slog"
)

// PortfolioHandler handles portfolio CRUD requests.
type PortfolioHandler struct {
	portfolios PortfolioStore
	market     market.Data
	ledger     *ledger.Ledger
	logger     *slog.Logger
}

// NewPortfolioHandler creates a portfolio handler.
func NewPortfolioHandler(portfolios PortfolioStore, data market.Data, ldgr *ledger.Ledger, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{
		portfolios: portfolios,
		market:     data,
		ledger:     ldgr,
		logger:     logger,
	}
}

// Create handles POST /api/v1/portfolio. It creates or replaces the
// caller's portfolio and records the change in the audit ledger.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var portfolio models.Portfolio
	if err := json.NewDecoder(r.Body).Decode(&portfolio); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := ValidatePortfolio(&portfolio); err != nil {
		var vErr ValidationError
		if errors.As(err, &vErr) {
			writeError(w, h.logger, http.StatusBadRequest, vErr.Error())
			return
		}
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	totalValue := decimal.Zero
	symbols := make([]string, 0, len(portfolio.Holdings))
	for i := range portfolio.Holdings {
		holding := &portfolio.Holdings[i]
		if holding.ID == "" {
			holding.ID = uuid.New().String()
		}
		if holding.CurrentPrice.IsZero() {
			price, err := h.market.Price(ctx, holding.Symbol)
			if err != nil {
				h.logger.Error("failed to fetch price", "symbol", holding.Symbol, "error", err)
				writeError(w, h.logger, http.StatusBadGateway, "Failed to fetch market data")
				return
			}
			holding.CurrentPrice = price
		}
		totalValue = totalValue.Add(holding.Value())
		symbols = append(symbols, holding.Symbol)
	}
	portfolio.TotalValue = totalValue
	if portfolio.Currency == "" {
		portfolio.Currency = "USD"
	}

	now := time.Now().UTC()
	if portfolio.CreatedAt.IsZero() {
		portfolio.CreatedAt = now
	}
	portfolio.UpdatedAt = now

	if err := h.portfolios.Upsert(ctx, portfolio); err != nil {
		h.logger.Error("failed to store portfolio", "user_id", portfolio.UserID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to store portfolio")
		return
	}

	if _, err := h.ledger.Append(ctx, ledger.AppendInput{
		SubjectID:      portfolio.UserID,
		ActionType:     models.ActionTypeConfigChange,
		Description:    "Portfolio created or updated",
		AffectedAssets: symbols,
		TriggeredBy:    models.TriggerUser,
	}); err != nil {
		h.logger.Error("failed to record portfolio change", "user_id", portfolio.UserID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to record audit entry")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status":       "success",
		"portfolio_id": portfolio.UserID,
		"total_value":  portfolio.TotalValue,
	})
}

// Get handles GET /api/v1/portfolio/{user_id}.
func (h *PortfolioHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/v1/portfolio/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid user ID")
		return
	}

	portfolio, err := h.portfolios.Get(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load portfolio", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load portfolio")
		return
	}
	if portfolio == nil {
		writeError(w, h.logger, http.StatusNotFound, "Portfolio not found")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, portfolio)
}
