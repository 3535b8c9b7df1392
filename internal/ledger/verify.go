package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/finguard/finguard/internal/models"
)

// Verifier walks a subject's chain and reports tampering or corruption.
// It is read-only and safe to run concurrently with appends; a verification
// racing an append may see one fewer record, which is a snapshot boundary,
// not a chain break.
type Verifier struct {
	store  Store
	logger *slog.Logger
}

// NewVerifier creates a verifier over the given store.
func NewVerifier(store Store, logger *slog.Logger) *Verifier {
	return &Verifier{store: store, logger: logger}
}

// Verify loads the subject's records in sequence order and checks, for each:
// that the stored content hash matches one recomputed from the stored fields,
// that its previous_hash matches the actual predecessor's content hash, and
// that sequence numbers run contiguously from 1. An empty chain is valid.
func (v *Verifier) Verify(ctx context.Context, subjectID string) (*models.VerificationReport, error) {
	if subjectID == "" {
		return nil, ValidationError{Field: "subject_id", Message: "subject ID is required"}
	}

	records, err := v.store.ListAscending(ctx, subjectID)
	if err != nil {
		return nil, PersistenceError{Op: "load chain", Err: err}
	}

	issues := []models.IntegrityIssue{}
	flagged := make(map[string]bool)
	report := func(id string, kind models.IssueKind, detail string) {
		issues = append(issues, models.IntegrityIssue{RecordID: id, Kind: kind, Detail: detail})
		flagged[id] = true
	}

	for i := range records {
		rec := &records[i]

		if computed := ComputeHash(rec); computed != rec.ContentHash {
			report(rec.ID, models.IssueHashMismatch, fmt.Sprintf(
				"stored %s, recomputed %s", hashPreview(rec.ContentHash), hashPreview(computed)))
		}

		if i == 0 {
			if rec.PreviousHash != GenesisHash {
				report(rec.ID, models.IssueChainBreak, fmt.Sprintf(
					"first record points at %s instead of the genesis sentinel", hashPreview(rec.PreviousHash)))
			}
		} else if rec.PreviousHash != records[i-1].ContentHash {
			report(rec.ID, models.IssueChainBreak, fmt.Sprintf(
				"expected previous %s, found %s", hashPreview(records[i-1].ContentHash), hashPreview(rec.PreviousHash)))
		}

		if want := int64(i + 1); rec.SequenceNumber != want {
			report(rec.ID, models.IssueSequenceGap, fmt.Sprintf(
				"expected sequence %d, found %d", want, rec.SequenceNumber))
		}
	}

	verified := 0
	for i := range records {
		if !flagged[records[i].ID] {
			verified++
		}
	}

	reportOut := &models.VerificationReport{
		SubjectID:       subjectID,
		Valid:           len(issues) == 0,
		TotalEntries:    len(records),
		VerifiedEntries: verified,
		Issues:          issues,
	}

	if !reportOut.Valid {
		v.logger.Warn("audit chain verification failed",
			"subject_id", subjectID,
			"total_entries", reportOut.TotalEntries,
			"issue_count", len(issues))
	}

	return reportOut, nil
}
