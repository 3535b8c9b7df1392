// Package api implements the HTTP surface of the advisory service:
// portfolio management, rebalancing analysis and execution, and the audit
// ledger endpoints.
package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/finguard/finguard/internal/database"
	"github.com/finguard/finguard/internal/models"
	"log/slog"
)

// PortfolioStore is the persistence surface the portfolio handlers need.
type PortfolioStore interface {
	Upsert(ctx context.Context, p models.Portfolio) error
	Get(ctx context.Context, userID string) (*models.Portfolio, error)
}

// RecommendationStore is the persistence surface the rebalance handlers need.
type RecommendationStore interface {
	Create(ctx context.Context, rec models.Recommendation) error
	Get(ctx context.Context, id string) (*models.Recommendation, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, map[string]string{"error": message})
}

// HealthHandler reports service and database health.
type HealthHandler struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewHealthHandler creates a health handler. db may be nil in tests.
func NewHealthHandler(db *sql.DB, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, logger: logger}
}

// Health handles GET /healthz.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.db != nil {
		if err := database.HealthCheck(r.Context(), h.db); err != nil {
			h.logger.Error("database health check failed", "error", err)
			body["status"] = "degraded"
			body["database"] = err.Error()
			writeJSON(w, h.logger, http.StatusServiceUnavailable, body)
			return
		}
		body["database"] = database.Stats(h.db)
	}

	writeJSON(w, h.logger, http.StatusOK, body)
}
