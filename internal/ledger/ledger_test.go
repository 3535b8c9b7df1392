package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"log/slog"

	"github.com/finguard/finguard/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger() (*Ledger, *MemoryStore) {
	store := NewMemoryStore()
	return New(store, nil, testLogger()), store
}

func mustAppend(t *testing.T, l *Ledger, in AppendInput) *models.AuditRecord {
	t.Helper()
	rec, err := l.Append(context.Background(), in)
	if err != nil {
		t.Fatalf("Append returned error: %v", err)
	}
	return rec
}

func TestAppendStartsAtSequenceOne(t *testing.T) {
	l, _ := newTestLedger()

	rec := mustAppend(t, l, AppendInput{
		SubjectID:   "user-1",
		ActionType:  models.ActionTypeRebalance,
		Description: "initial rebalance",
	})

	if rec.SequenceNumber != 1 {
		t.Errorf("expected sequence 1, got %d", rec.SequenceNumber)
	}
	if rec.PreviousHash != GenesisHash {
		t.Errorf("expected genesis sentinel, got %s", rec.PreviousHash)
	}
	if rec.ContentHash == "" {
		t.Error("expected content hash to be set")
	}
	if rec.ID == "" {
		t.Error("expected record ID to be set")
	}
}

func TestAppendMonotonicSequence(t *testing.T) {
	l, _ := newTestLedger()

	for i := 1; i <= 5; i++ {
		rec := mustAppend(t, l, AppendInput{
			SubjectID:   "user-1",
			ActionType:  models.ActionTypeTrade,
			Description: fmt.Sprintf("trade %d", i),
		})
		if rec.SequenceNumber != int64(i) {
			t.Fatalf("append %d: expected sequence %d, got %d", i, i, rec.SequenceNumber)
		}
	}
}

func TestAppendChainsToPredecessor(t *testing.T) {
	l, _ := newTestLedger()

	confidence := 0.94
	first := mustAppend(t, l, AppendInput{
		SubjectID:      "user-1",
		ActionType:     models.ActionTypeRebalance,
		Description:    "rebalance",
		AffectedAssets: []string{"BTC", "AAPL"},
		TriggeredBy:    models.TriggerAIAgent,
		Confidence:     &confidence,
	})
	second := mustAppend(t, l, AppendInput{
		SubjectID:   "user-1",
		ActionType:  models.ActionTypeTrade,
		Description: "executed trade",
		TriggeredBy: models.TriggerUser,
	})

	if second.PreviousHash != first.ContentHash {
		t.Errorf("second record previous_hash %s does not match first content_hash %s",
			second.PreviousHash, first.ContentHash)
	}
}

func TestAppendSubjectsAreIndependent(t *testing.T) {
	l, _ := newTestLedger()

	for i := 0; i < 3; i++ {
		mustAppend(t, l, AppendInput{SubjectID: "user-a", ActionType: models.ActionTypeAlert, Description: "a"})
	}
	rec := mustAppend(t, l, AppendInput{SubjectID: "user-b", ActionType: models.ActionTypeAlert, Description: "b"})

	if rec.SequenceNumber != 1 {
		t.Errorf("subject B should start at sequence 1, got %d", rec.SequenceNumber)
	}
	if rec.PreviousHash != GenesisHash {
		t.Errorf("subject B first record should point at genesis, got %s", rec.PreviousHash)
	}
}

func TestAppendIDsUniqueAcrossSubjects(t *testing.T) {
	l, _ := newTestLedger()

	// Pin the clock so both subjects append within the same second and at
	// the same sequence number.
	fixed := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return fixed }

	a := mustAppend(t, l, AppendInput{SubjectID: "user-a", ActionType: models.ActionTypeAlert, Description: "a"})
	b := mustAppend(t, l, AppendInput{SubjectID: "user-b", ActionType: models.ActionTypeAlert, Description: "b"})

	if a.SequenceNumber != b.SequenceNumber {
		t.Fatalf("expected equal sequence numbers, got %d and %d", a.SequenceNumber, b.SequenceNumber)
	}
	if a.ID == b.ID {
		t.Errorf("record IDs must be unique across subjects, both got %s", a.ID)
	}
}

func TestAppendValidation(t *testing.T) {
	l, _ := newTestLedger()
	bad := 1.5
	negative := -0.1

	tests := []struct {
		name  string
		input AppendInput
		field string
	}{
		{
			name:  "missing subject",
			input: AppendInput{ActionType: models.ActionTypeTrade},
			field: "subject_id",
		},
		{
			name:  "missing action type",
			input: AppendInput{SubjectID: "user-1"},
			field: "action_type",
		},
		{
			name:  "confidence above one",
			input: AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeTrade, Confidence: &bad},
			field: "confidence",
		},
		{
			name:  "negative confidence",
			input: AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeTrade, Confidence: &negative},
			field: "confidence",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Append(context.Background(), tt.input)
			var vErr ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, vErr.Field)
			}
		})
	}
}

func TestAppendDefaultsTriggeredBy(t *testing.T) {
	l, _ := newTestLedger()

	rec := mustAppend(t, l, AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeAlert, Description: "d"})
	if rec.TriggeredBy != models.TriggerAIAgent {
		t.Errorf("expected default trigger %q, got %q", models.TriggerAIAgent, rec.TriggeredBy)
	}
}

type failingStore struct {
	Store
	failAppend bool
	failLatest bool
}

func (f *failingStore) AppendRecord(ctx context.Context, record models.AuditRecord) error {
	if f.failAppend {
		return errors.New("disk full")
	}
	return f.Store.AppendRecord(ctx, record)
}

func (f *failingStore) LatestRecord(ctx context.Context, subjectID string) (*models.AuditRecord, error) {
	if f.failLatest {
		return nil, errors.New("connection reset")
	}
	return f.Store.LatestRecord(ctx, subjectID)
}

func TestAppendSurfacesPersistenceErrors(t *testing.T) {
	tests := []struct {
		name  string
		store *failingStore
	}{
		{"write failure", &failingStore{Store: NewMemoryStore(), failAppend: true}},
		{"read failure", &failingStore{Store: NewMemoryStore(), failLatest: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := New(tt.store, nil, testLogger())
			_, err := l.Append(context.Background(), AppendInput{
				SubjectID:   "user-1",
				ActionType:  models.ActionTypeTrade,
				Description: "doomed",
			})

			var pErr PersistenceError
			if !errors.As(err, &pErr) {
				t.Fatalf("expected PersistenceError, got %v", err)
			}
		})
	}
}

func TestConcurrentAppendsSameSubject(t *testing.T) {
	l, store := newTestLedger()

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := l.Append(context.Background(), AppendInput{
				SubjectID:   "user-1",
				ActionType:  models.ActionTypeTrade,
				Description: fmt.Sprintf("concurrent trade %d", n),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent append failed: %v", err)
		}
	}

	records, err := store.ListAscending(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListAscending returned error: %v", err)
	}
	if len(records) != workers {
		t.Fatalf("expected %d records, got %d", workers, len(records))
	}
	for i, rec := range records {
		if rec.SequenceNumber != int64(i+1) {
			t.Errorf("record %d has sequence %d", i, rec.SequenceNumber)
		}
		if i > 0 && rec.PreviousHash != records[i-1].ContentHash {
			t.Errorf("record %d broke the chain", i)
		}
	}
}

func TestListRecentFirstWithFilterAndClamp(t *testing.T) {
	l, _ := newTestLedger()
	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	step := 0
	l.now = func() time.Time {
		step++
		return base.Add(time.Duration(step) * time.Second)
	}

	mustAppend(t, l, AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeRebalance, Description: "first"})
	mustAppend(t, l, AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeTrade, Description: "second"})
	mustAppend(t, l, AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeTrade, Description: "third"})

	t.Run("recent first", func(t *testing.T) {
		records, err := l.List(context.Background(), "user-1", 10, "")
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected 3 records, got %d", len(records))
		}
		if records[0].Description != "third" {
			t.Errorf("expected most recent record first, got %q", records[0].Description)
		}
	})

	t.Run("action filter", func(t *testing.T) {
		records, err := l.List(context.Background(), "user-1", 10, models.ActionTypeTrade)
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("expected 2 trade records, got %d", len(records))
		}
		for _, rec := range records {
			if rec.ActionType != models.ActionTypeTrade {
				t.Errorf("filter leaked record of type %q", rec.ActionType)
			}
		}
	})

	t.Run("limit truncates", func(t *testing.T) {
		records, err := l.List(context.Background(), "user-1", 1, "")
		if err != nil {
			t.Fatalf("List returned error: %v", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
	})

	t.Run("missing subject rejected", func(t *testing.T) {
		_, err := l.List(context.Background(), "", 10, "")
		var vErr ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

type recordingSink struct {
	mu      sync.Mutex
	records []models.AuditRecord
	done    chan struct{}
}

func (s *recordingSink) RecordAppended(ctx context.Context, record models.AuditRecord) error {
	s.mu.Lock()
	s.records = append(s.records, record)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func TestAppendNotifiesEventSink(t *testing.T) {
	sink := &recordingSink{done: make(chan struct{}, 1)}
	l := New(NewMemoryStore(), sink, testLogger())

	rec := mustAppend(t, l, AppendInput{SubjectID: "user-1", ActionType: models.ActionTypeAlert, Description: "drift"})

	select {
	case <-sink.done:
	case <-time.After(time.Second):
		t.Fatal("event sink was not notified")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.records) != 1 || sink.records[0].ID != rec.ID {
		t.Fatalf("sink received wrong records: %+v", sink.records)
	}
}
