// Package scheduler runs periodic background checks over stored portfolios.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/finguard/finguard/internal/advisor"
	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/models"
)

// PortfolioLister fetches the portfolios to scan on each cycle.
type PortfolioLister interface {
	List(ctx context.Context) ([]models.Portfolio, error)
}

// DriftScheduler periodically scans all portfolios for allocation drift
// and writes an alert into the audit ledger for each drifted portfolio.
type DriftScheduler struct {
	portfolios PortfolioLister
	ledger     *ledger.Ledger
	logger     *slog.Logger
	stopChan   chan struct{}
	interval   time.Duration
}

// NewDriftScheduler creates a drift scheduler with the given check interval.
func NewDriftScheduler(portfolios PortfolioLister, ldgr *ledger.Ledger, interval time.Duration, logger *slog.Logger) *DriftScheduler {
	return &DriftScheduler{
		portfolios: portfolios,
		ledger:     ldgr,
		logger:     logger,
		stopChan:   make(chan struct{}),
		interval:   interval,
	}
}

// Start begins the scheduler loop. It runs one check immediately, then on
// every tick until Stop is called or the context is cancelled.
func (s *DriftScheduler) Start(ctx context.Context) {
	s.logger.Info("[DRIFT SCHEDULER] Starting", "check_interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.checkPortfolios(ctx)

	for {
		select {
		case <-ticker.C:
			s.checkPortfolios(ctx)
		case <-s.stopChan:
			s.logger.Info("[DRIFT SCHEDULER] Stopped")
			return
		case <-ctx.Done():
			s.logger.Info("[DRIFT SCHEDULER] Stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler.
func (s *DriftScheduler) Stop() {
	close(s.stopChan)
}

func (s *DriftScheduler) checkPortfolios(ctx context.Context) {
	portfolios, err := s.portfolios.List(ctx)
	if err != nil {
		s.logger.Error("[DRIFT SCHEDULER] Failed to list portfolios", "error", err)
		return
	}
	if len(portfolios) == 0 {
		return
	}

	s.logger.Info("[DRIFT SCHEDULER] Checking portfolios for drift", "count", len(portfolios))

	for _, portfolio := range portfolios {
		current := advisor.CalculateAllocations(portfolio)
		drifts := advisor.DetectDrift(current, portfolio.TargetAllocations)
		if len(drifts) == 0 {
			continue
		}

		categories := make([]string, 0, len(drifts))
		for _, d := range drifts {
			categories = append(categories, string(d.Category))
		}

		_, err := s.ledger.Append(ctx, ledger.AppendInput{
			SubjectID:   portfolio.UserID,
			ActionType:  models.ActionTypeAlert,
			Description: fmt.Sprintf("Scheduled drift check found %d categories outside target bands", len(drifts)),
			TriggeredBy: models.TriggerScheduled,
			ExtraContext: map[string]interface{}{
				"drifted_categories": categories,
				"drifts":             drifts,
			},
		})
		if err != nil {
			s.logger.Error("[DRIFT SCHEDULER] Failed to record drift alert",
				"user_id", portfolio.UserID,
				"error", err)
			continue
		}

		s.logger.Info("[DRIFT SCHEDULER] Recorded drift alert",
			"user_id", portfolio.UserID,
			"drifted_categories", len(drifts))
	}
}
