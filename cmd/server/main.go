package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/finguard/finguard/internal/advisor"
	"github.com/finguard/finguard/internal/api"
	"github.com/finguard/finguard/internal/auth"
	"github.com/finguard/finguard/internal/config"
	"github.com/finguard/finguard/internal/database"
	"github.com/finguard/finguard/internal/events"
	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/logging"
	"github.com/finguard/finguard/internal/market"
	"github.com/finguard/finguard/internal/metrics"
	"github.com/finguard/finguard/internal/scheduler"
	"github.com/finguard/finguard/internal/server"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting finguard")

	logger.Info("connecting to database")
	dbCfg := database.DefaultConfig()
	dbCfg.URL = cfg.Database.URL
	db, err := database.Connect(context.Background(), dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	if err := database.RunMigrations(db, "./migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Repositories
	portfolioRepo := database.NewPortfolioRepository(db)
	recommendationRepo := database.NewRecommendationRepository(db)
	auditStore := database.NewAuditStore(db)

	// Audit event publishing is optional; the ledger works without it.
	var sink ledger.EventSink
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer publisher.Close()
		sink = publisher
		logger.Info("audit event publishing enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	auditLedger := ledger.New(auditStore, sink, logger)
	verifier := ledger.NewVerifier(auditStore, logger)

	marketData := market.NewMockData()

	// Prefer the LLM advisor when an API key is configured; otherwise fall
	// back to the rule-based engine.
	var decisionSource advisor.DecisionSource
	if cfg.Advisor.APIKey != "" {
		decisionSource = advisor.NewLLMAdvisor(advisor.LLMConfig{
			Provider: cfg.Advisor.Provider,
			Model:    cfg.Advisor.Model,
			APIKey:   cfg.Advisor.APIKey,
		}, marketData, logger)
		logger.Info("using LLM advisor", "provider", cfg.Advisor.Provider, "model", cfg.Advisor.Model)
	} else {
		decisionSource = advisor.NewRebalancer(marketData, logger)
		logger.Info("no advisor API key configured, using rule-based rebalancer")
	}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics collector", "error", err)
		os.Exit(1)
	}

	authConfig, err := auth.LoadConfigFromEnv()
	if err != nil {
		logger.Error("failed to load auth config", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, api.RouterDeps{
		DB:              db,
		Portfolios:      portfolioRepo,
		Recommendations: recommendationRepo,
		Market:          marketData,
		Advisor:         decisionSource,
		Ledger:          auditLedger,
		Verifier:        verifier,
		Collector:       collector,
		AuthConfig:      authConfig,
		Logger:          logger,
	})
	mux.Handle("/metrics", collector.Handler())

	// Background drift checks write scheduled alerts into the ledger.
	driftScheduler := scheduler.NewDriftScheduler(portfolioRepo, auditLedger, cfg.Scheduler.DriftCheckInterval, logger)
	go driftScheduler.Start(context.Background())
	defer driftScheduler.Stop()

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("finguard started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
