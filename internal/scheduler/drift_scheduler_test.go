package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/finguard/finguard/internal/ledger"
	"github.com/finguard/finguard/internal/models"
	"github.com/shopspring/decimal"
)

type staticLister struct {
	portfolios []models.Portfolio
	err        error
}

func (s *staticLister) List(_ context.Context) ([]models.Portfolio, error) {
	return s.portfolios, s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func portfolioWithDrift(userID string, drifted bool) models.Portfolio {
	target := map[models.AssetCategory]float64{
		models.CategoryStocks: 50,
		models.CategoryBonds:  50,
	}
	stocksValue, bondsValue := 50000.0, 50000.0
	if drifted {
		stocksValue, bondsValue = 70000.0, 30000.0
	}
	return models.Portfolio{
		UserID:     userID,
		TotalValue: decimal.NewFromInt(100000),
		Holdings: []models.Holding{
			{
				Symbol:       "SPY",
				Category:     models.CategoryStocks,
				Quantity:     decimal.NewFromFloat(stocksValue),
				CurrentPrice: decimal.NewFromInt(1),
			},
			{
				Symbol:       "VBMFX",
				Category:     models.CategoryBonds,
				Quantity:     decimal.NewFromFloat(bondsValue),
				CurrentPrice: decimal.NewFromInt(1),
			},
		},
		TargetAllocations: target,
	}
}

func TestDriftSchedulerRecordsAlerts(t *testing.T) {
	store := ledger.NewMemoryStore()
	ldgr := ledger.New(store, nil, testLogger())

	lister := &staticLister{portfolios: []models.Portfolio{
		portfolioWithDrift("drifted-user", true),
		portfolioWithDrift("balanced-user", false),
	}}

	s := NewDriftScheduler(lister, ldgr, time.Minute, testLogger())
	s.checkPortfolios(context.Background())

	records, err := ldgr.List(context.Background(), "drifted-user", 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 alert for drifted portfolio, got %d", len(records))
	}
	rec := records[0]
	if rec.ActionType != models.ActionTypeAlert {
		t.Errorf("action type = %q, want alert", rec.ActionType)
	}
	if rec.TriggeredBy != models.TriggerScheduled {
		t.Errorf("triggered by = %q, want scheduled", rec.TriggeredBy)
	}
	if rec.ExtraContext["drifted_categories"] == nil {
		t.Error("alert should carry the drifted categories")
	}

	balanced, err := ldgr.List(context.Background(), "balanced-user", 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(balanced) != 0 {
		t.Errorf("expected no alerts for balanced portfolio, got %d", len(balanced))
	}
}

func TestDriftSchedulerRepeatedChecksExtendChain(t *testing.T) {
	store := ledger.NewMemoryStore()
	ldgr := ledger.New(store, nil, testLogger())

	lister := &staticLister{portfolios: []models.Portfolio{portfolioWithDrift("u1", true)}}
	s := NewDriftScheduler(lister, ldgr, time.Minute, testLogger())

	s.checkPortfolios(context.Background())
	s.checkPortfolios(context.Background())
	s.checkPortfolios(context.Background())

	records, err := ldgr.List(context.Background(), "u1", 10, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 alerts after 3 checks, got %d", len(records))
	}

	report, err := ledger.NewVerifier(store, testLogger()).Verify(context.Background(), "u1")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !report.Valid {
		t.Errorf("chain should verify after scheduler appends: %+v", report.Issues)
	}
}

func TestDriftSchedulerStops(t *testing.T) {
	lister := &staticLister{}
	ldgr := ledger.New(ledger.NewMemoryStore(), nil, testLogger())
	s := NewDriftScheduler(lister, ldgr, 10*time.Millisecond, testLogger())

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
