package ledger

import (
	"context"

	"github.com/finguard/finguard/internal/models"
)

// Store is the append-only persistence contract for audit records, keyed by
// (subject_id, sequence_number). Any engine can sit behind it; the ledger
// handles chaining and per-subject serialization above this interface.
type Store interface {
	// AppendRecord durably writes a fully populated record. It must fail,
	// leaving no partial state, if a record with the same subject and
	// sequence number already exists.
	AppendRecord(ctx context.Context, record models.AuditRecord) error

	// LatestRecord returns the record with the highest sequence number for
	// the subject, or (nil, nil) when the subject has no records.
	LatestRecord(ctx context.Context, subjectID string) (*models.AuditRecord, error)

	// ListAscending returns all records for the subject ordered by
	// sequence number ascending.
	ListAscending(ctx context.Context, subjectID string) ([]models.AuditRecord, error)

	// ListRecent returns up to limit records for the subject ordered by
	// timestamp descending, optionally filtered to one action type
	// (empty string means no filter).
	ListRecent(ctx context.Context, subjectID string, limit int, actionType models.ActionType) ([]models.AuditRecord, error)
}
