// Package ledger implements the hash-chained audit trail at the core of
// FinGuard. Records are partitioned per subject (user), each committed by a
// SHA-256 content hash that covers the previous record's hash, so altering
// any historical record invalidates its own hash and every later link.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/finguard/finguard/internal/models"
	"github.com/google/uuid"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// EventSink receives successfully appended records, e.g. for publishing to a
// message broker. Delivery is best-effort and never blocks the append path.
type EventSink interface {
	RecordAppended(ctx context.Context, record models.AuditRecord) error
}

// Ledger appends audit records per subject, preserving the chain invariants.
type Ledger struct {
	store  Store
	sink   EventSink
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over the given store. sink may be nil.
func New(store Store, sink EventSink, logger *slog.Logger) *Ledger {
	return &Ledger{
		store:  store,
		sink:   sink,
		logger: logger,
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
}

// AppendInput carries the caller-supplied fields of a new audit record.
// Everything else (id, sequence number, timestamp, hashes) is derived.
type AppendInput struct {
	SubjectID      string
	ActionType     models.ActionType
	Description    string
	AffectedAssets []string
	TriggeredBy    models.TriggerSource
	Confidence     *float64
	Reasoning      string
	ExtraContext   map[string]interface{}
}

// Append validates the input, determines the next sequence number and
// previous hash under a per-subject lock, computes the content hash and
// persists the record. At most one record is produced per call; on error no
// record was written.
func (l *Ledger) Append(ctx context.Context, in AppendInput) (*models.AuditRecord, error) {
	if err := validateAppend(in); err != nil {
		return nil, err
	}

	triggeredBy := in.TriggeredBy
	if triggeredBy == "" {
		triggeredBy = models.TriggerAIAgent
	}

	// Serialize read-latest-then-write per subject so concurrent appends
	// can never observe the same latest record and fork the chain.
	// Different subjects proceed independently.
	lock := l.subjectLock(in.SubjectID)
	lock.Lock()
	defer lock.Unlock()

	latest, err := l.store.LatestRecord(ctx, in.SubjectID)
	if err != nil {
		return nil, PersistenceError{Op: "read latest record", Err: err}
	}

	previousHash := GenesisHash
	sequence := int64(1)
	if latest != nil {
		previousHash = latest.ContentHash
		sequence = latest.SequenceNumber + 1
	}

	// Truncate to microseconds so the timestamp survives a timestamptz
	// round trip with its canonical encoding intact.
	timestamp := l.now().UTC().Truncate(time.Microsecond)

	// The uuid suffix keeps ids globally unique; timestamp and sequence
	// alone can collide across subjects within the same second.
	record := models.AuditRecord{
		ID:             fmt.Sprintf("AL-%s-%06d-%s", timestamp.Format("20060102150405"), sequence, uuid.New().String()[:8]),
		SubjectID:      in.SubjectID,
		SequenceNumber: sequence,
		Timestamp:      timestamp,
		ActionType:     in.ActionType,
		Description:    in.Description,
		AffectedAssets: in.AffectedAssets,
		TriggeredBy:    triggeredBy,
		Confidence:     in.Confidence,
		Reasoning:      in.Reasoning,
		ExtraContext:   in.ExtraContext,
		PreviousHash:   previousHash,
	}
	record.ContentHash = ComputeHash(&record)

	if err := l.store.AppendRecord(ctx, record); err != nil {
		return nil, PersistenceError{Op: "append record", Err: err}
	}

	l.logger.Info("audit record appended",
		"subject_id", record.SubjectID,
		"record_id", record.ID,
		"sequence_number", record.SequenceNumber,
		"action_type", record.ActionType)

	if l.sink != nil {
		go func(rec models.AuditRecord) {
			if err := l.sink.RecordAppended(context.Background(), rec); err != nil {
				l.logger.Error("failed to publish audit record", "record_id", rec.ID, "error", err)
			}
		}(record)
	}

	return &record, nil
}

// List returns up to limit records for the subject, most recent first,
// optionally filtered to a single action type. limit is clamped to
// [1, maxListLimit] with a default of defaultListLimit.
func (l *Ledger) List(ctx context.Context, subjectID string, limit int, actionType models.ActionType) ([]models.AuditRecord, error) {
	if subjectID == "" {
		return nil, ValidationError{Field: "subject_id", Message: "subject ID is required"}
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := l.store.ListRecent(ctx, subjectID, limit, actionType)
	if err != nil {
		return nil, PersistenceError{Op: "list records", Err: err}
	}
	return records, nil
}

func (l *Ledger) subjectLock(subjectID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[subjectID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[subjectID] = lock
	}
	return lock
}

func validateAppend(in AppendInput) error {
	if in.SubjectID == "" {
		return ValidationError{Field: "subject_id", Message: "subject ID is required"}
	}
	if in.ActionType == "" {
		return ValidationError{Field: "action_type", Message: "action type is required"}
	}
	if in.Confidence != nil && (*in.Confidence < 0 || *in.Confidence > 1) {
		return ValidationError{Field: "confidence", Message: "confidence must be between 0 and 1"}
	}
	return nil
}
