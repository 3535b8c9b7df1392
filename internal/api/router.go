package api

import (
	"database/sql"
	"net/http"

	"github.com/finguard/finguard/internal/advisor"
	"github.com/finguard/finguard/internal/auth"
	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/metrics"
	"log/slog"
)

// RouterDeps carries everything the HTTP routes need.
type RouterDeps struct {
	DB              *sql.DB
	Portfolios      PortfolioStore
	Recommendations RecommendationStore
	Market          market.Data
	Advisor         advisor.DecisionSource
	Ledger          *ledger.Ledger
	Verifier        *ledger.Verifier
	Collector       *metrics.HTTPCollector
	AuthConfig      auth.Config
	Logger          *slog.Logger
}

// SetupRoutes configures all API routes.
func SetupRoutes(mux *http.ServeMux, deps RouterDeps) {
	portfolioHandler := NewPortfolioHandler(deps.Portfolios, deps.Market, deps.Ledger, deps.Logger)
	rebalanceHandler := NewRebalanceHandler(deps.Portfolios, deps.Recommendations, deps.Advisor, deps.Ledger, deps.Collector, deps.Logger)
	auditHandler := NewAuditHandler(deps.Ledger, deps.Verifier, deps.Collector, deps.Logger)
	riskHandler := NewRiskHandler(deps.Portfolios, deps.Market, deps.Logger)
	authHandler := NewAuthHandler(deps.AuthConfig, deps.Logger)
	healthHandler := NewHealthHandler(deps.DB, deps.Logger)

	authMiddleware := auth.AuthMiddleware(deps.AuthConfig)

	// Authentication routes (public)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		authMiddleware(http.HandlerFunc(authHandler.ValidateToken)).ServeHTTP(w, r)
	})

	// Portfolio routes
	mux.HandleFunc("/api/v1/portfolio", portfolioHandler.Create)
	mux.HandleFunc("/api/v1/portfolio/", portfolioHandler.Get)

	// Rebalancing routes
	mux.HandleFunc("/api/v1/rebalance/analyze/", rebalanceHandler.Analyze)
	mux.HandleFunc("/api/v1/rebalance/execute/", rebalanceHandler.Execute)

	// Risk analysis routes
	mux.HandleFunc("/api/v1/risk/", riskHandler.Analyze)

	// Audit ledger routes
	mux.HandleFunc("/api/v1/audit/logs/", auditHandler.List)
	mux.HandleFunc("/api/v1/audit/verify/", auditHandler.Verify)

	mux.HandleFunc("/healthz", healthHandler.Health)
}
