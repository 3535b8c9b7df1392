package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/finguard/finguard/internal/advisor"
	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/metrics"
	"github.com/finguard/finguard/internal/models"
	"log/slog"
)

// defaultExecutionDelay simulates broker round-trip time for trade execution.
const defaultExecutionDelay = 3 * time.Second

// RebalanceHandler handles rebalancing analysis and execution requests.
type RebalanceHandler struct {
	portfolios      PortfolioStore
	recommendations RecommendationStore
	advisor         advisor.DecisionSource
	ledger          *ledger.Ledger
	collector       *metrics.HTTPCollector
	logger          *slog.Logger
	executionDelay  time.Duration
}

// NewRebalanceHandler creates a rebalance handler. collector may be nil.
func NewRebalanceHandler(portfolios PortfolioStore, recommendations RecommendationStore, source advisor.DecisionSource, ldgr *ledger.Ledger, collector *metrics.HTTPCollector, logger *slog.Logger) *RebalanceHandler {
	return &RebalanceHandler{
		portfolios:      portfolios,
		recommendations: recommendations,
		advisor:         source,
		ledger:          ldgr,
		collector:       collector,
		logger:          logger,
		executionDelay:  defaultExecutionDelay,
	}
}

// Analyze handles POST /api/v1/rebalance/analyze/{user_id}. It runs the
// decision source over the stored portfolio and, when action is needed,
// persists a pending recommendation and appends a rebalance record to the
// audit ledger.
func (h *RebalanceHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/v1/rebalance/analyze/")
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

	recommendation, err := h.advisor.Propose(ctx, *portfolio)
	if err != nil {
		h.logger.Error("rebalancing analysis failed", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Rebalancing analysis failed")
		return
	}
	if recommendation == nil {
		writeJSON(w, h.logger, http.StatusOK, map[string]string{
			"status":  "no_action_needed",
			"message": "Portfolio is within target allocation ranges",
		})
		return
	}

	if err := h.recommendations.Create(ctx, *recommendation); err != nil {
		h.logger.Error("failed to store recommendation", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to store recommendation")
		return
	}

	confidence := recommendation.Confidence
	record, err := h.ledger.Append(ctx, ledger.AppendInput{
		SubjectID:      userID,
		ActionType:     models.ActionTypeRebalance,
		Description:    "Rebalance recommendation generated",
		AffectedAssets: recommendation.AffectedSymbols(),
		TriggeredBy:    models.TriggerAIAgent,
		Confidence:     &confidence,
		Reasoning:      recommendation.Reasoning,
		ExtraContext: map[string]interface{}{
			"recommendation_id": recommendation.ID,
			"expected_impact":   recommendation.ExpectedImpact,
		},
	})
	if err != nil {
		h.logger.Error("failed to record recommendation", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to record audit entry")
		return
	}
	if h.collector != nil {
		h.collector.RecordLedgerAppend(string(models.ActionTypeRebalance))
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"status":         "success",
		"recommendation": recommendation,
		"audit_id":       record.ID,
	})
}

// Execute handles POST /api/v1/rebalance/execute/{recommendation_id}. The
// recommendation moves to executing immediately; trade settlement is
// simulated in the background and recorded in the ledger on completion.
func (h *RebalanceHandler) Execute(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	recommendationID := strings.TrimPrefix(r.URL.Path, "/api/v1/rebalance/execute/")
	if recommendationID == "" || strings.Contains(recommendationID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid recommendation ID")
		return
	}

	ctx := r.Context()
	recommendation, err := h.recommendations.Get(ctx, recommendationID)
	if err != nil {
		h.logger.Error("failed to load recommendation", "recommendation_id", recommendationID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load recommendation")
		return
	}
	if recommendation == nil {
		writeError(w, h.logger, http.StatusNotFound, "Recommendation not found")
		return
	}
	if recommendation.Status != models.RecommendationPending {
		writeError(w, h.logger, http.StatusConflict, "Recommendation is not pending")
		return
	}

	if err := h.recommendations.UpdateStatus(ctx, recommendationID, models.RecommendationExecuting); err != nil {
		h.logger.Error("failed to update recommendation status", "recommendation_id", recommendationID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to start execution")
		return
	}

	go h.executeTrades(context.Background(), *recommendation)

	writeJSON(w, h.logger, http.StatusOK, map[string]string{
		"status":            "execution_started",
		"recommendation_id": recommendationID,
		"message":           "Trades are being executed",
	})
}

func (h *RebalanceHandler) executeTrades(ctx context.Context, recommendation models.Recommendation) {
	time.Sleep(h.executionDelay)

	if err := h.recommendations.UpdateStatus(ctx, recommendation.ID, models.RecommendationExecuted); err != nil {
		h.logger.Error("failed to mark recommendation executed",
			"recommendation_id", recommendation.ID,
			"error", err)
		if err := h.recommendations.UpdateStatus(ctx, recommendation.ID, models.RecommendationFailed); err != nil {
			h.logger.Error("failed to mark recommendation failed",
				"recommendation_id", recommendation.ID,
				"error", err)
		}
		return
	}

	_, err := h.ledger.Append(ctx, ledger.AppendInput{
		SubjectID:      recommendation.UserID,
		ActionType:     models.ActionTypeTrade,
		Description:    "Rebalancing trades executed",
		AffectedAssets: recommendation.AffectedSymbols(),
		TriggeredBy:    models.TriggerSystem,
		ExtraContext: map[string]interface{}{
			"recommendation_id": recommendation.ID,
			"trade_count":       len(recommendation.Trades),
		},
	})
	if err != nil {
		h.logger.Error("failed to record trade execution",
			"recommendation_id", recommendation.ID,
			"error", err)
		return
	}
	if h.collector != nil {
		h.collector.RecordLedgerAppend(string(models.ActionTypeTrade))
	}

	h.logger.Info("trade execution complete",
		"recommendation_id", recommendation.ID,
		"user_id", recommendation.UserID,
		"trade_count", len(recommendation.Trades))
}
