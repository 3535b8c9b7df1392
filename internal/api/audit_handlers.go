package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/metrics"
	"github.com/finguard/finguard/internal/models"
	"log/slog"
)

// AuditHandler exposes read access to the audit ledger and chain
// verification.
type AuditHandler struct {
	ledger    *ledger.Ledger
	verifier  *ledger.Verifier
	collector *metrics.HTTPCollector
	logger    *slog.Logger
}

// NewAuditHandler creates an audit handler. collector may be nil.
func NewAuditHandler(ldgr *ledger.Ledger, verifier *ledger.Verifier, collector *metrics.HTTPCollector, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		ledger:    ldgr,
		verifier:  verifier,
		collector: collector,
		logger:    logger,
	}
}

// List handles GET /api/v1/audit/logs/{user_id}. Optional query parameters:
// limit and action_type.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/v1/audit/logs/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid user ID")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, h.logger, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	actionType := models.ActionType(r.URL.Query().Get("action_type"))

	records, err := h.ledger.List(r.Context(), userID, limit, actionType)
	if err != nil {
		var vErr ledger.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, h.logger, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.Error("failed to list audit records", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to list audit records")
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"total":   len(records),
		"records": records,
	})
}

// Verify handles GET /api/v1/audit/verify/{user_id}. It walks the subject's
// full chain and reports every integrity issue found.
func (h *AuditHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	userID := strings.TrimPrefix(r.URL.Path, "/api/v1/audit/verify/")
	if userID == "" || strings.Contains(userID, "/") {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid user ID")
		return
	}

	report, err := h.verifier.Verify(r.Context(), userID)
	if err != nil {
		h.logger.Error("chain verification failed", "user_id", userID, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Chain verification failed")
		return
	}
	if h.collector != nil {
		h.collector.RecordVerification(report.Valid)
	}

	writeJSON(w, h.logger, http.StatusOK, report)
}
