package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/finguard/finguard/internal/models"
)

// AuditStore is the Postgres implementation of the ledger's append-only
// store contract. One row per record; uniqueness on (subject_id,
// sequence_number) makes a forked chain impossible to persist.
type AuditStore struct {
	db *sql.DB
}

// NewAuditStore creates a new Postgres-backed audit store.
func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) AppendRecord(ctx context.Context, record models.AuditRecord) error {
	assetsJSON, err := json.Marshal(record.AffectedAssets)
	if err != nil {
		return fmt.Errorf("failed to marshal affected assets: %w", err)
	}

	var contextJSON []byte
	if record.ExtraContext != nil {
		contextJSON, err = json.Marshal(record.ExtraContext)
		if err != nil {
			return fmt.Errorf("failed to marshal extra context: %w", err)
		}
	}

	query := `
		INSERT INTO audit_records (id, subject_id, sequence_number, timestamp, action_type, description, affected_assets, triggered_by, confidence, reasoning, extra_context, content_hash, previous_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.SubjectID,
		record.SequenceNumber,
		record.Timestamp,
		record.ActionType,
		record.Description,
		assetsJSON,
		record.TriggeredBy,
		record.Confidence,
		record.Reasoning,
		contextJSON,
		record.ContentHash,
		record.PreviousHash,
	)

	return err
}

func (s *AuditStore) LatestRecord(ctx context.Context, subjectID string) (*models.AuditRecord, error) {
	query := selectColumns + `
		FROM audit_records
		WHERE subject_id = $1
		ORDER BY sequence_number DESC
		LIMIT 1
	`

	record, err := scanRecord(s.db.QueryRowContext(ctx, query, subjectID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

func (s *AuditStore) ListAscending(ctx context.Context, subjectID string) ([]models.AuditRecord, error) {
	query := selectColumns + `
		FROM audit_records
		WHERE subject_id = $1
		ORDER BY sequence_number ASC
	`

	rows, err := s.db.QueryContext(ctx, query, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

func (s *AuditStore) ListRecent(ctx context.Context, subjectID string, limit int, actionType models.ActionType) ([]models.AuditRecord, error) {
	query := selectColumns + `
		FROM audit_records
		WHERE subject_id = $1
	`
	args := []interface{}{subjectID}
	argPos := 2

	if actionType != "" {
		query += fmt.Sprintf(" AND action_type = $%d", argPos)
		args = append(args, actionType)
		argPos++
	}

	query += " ORDER BY timestamp DESC"
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectRecords(rows)
}

const selectColumns = `
	SELECT id, subject_id, sequence_number, timestamp, action_type, description, affected_assets, triggered_by, confidence, reasoning, extra_context, content_hash, previous_hash
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*models.AuditRecord, error) {
	var record models.AuditRecord
	var assetsJSON, contextJSON []byte

	err := row.Scan(
		&record.ID,
		&record.SubjectID,
		&record.SequenceNumber,
		&record.Timestamp,
		&record.ActionType,
		&record.Description,
		&assetsJSON,
		&record.TriggeredBy,
		&record.Confidence,
		&record.Reasoning,
		&contextJSON,
		&record.ContentHash,
		&record.PreviousHash,
	)
	if err != nil {
		return nil, err
	}

	// Hash recomputation depends on the canonical UTC rendering.
	record.Timestamp = record.Timestamp.UTC()

	if len(assetsJSON) > 0 {
		if err := json.Unmarshal(assetsJSON, &record.AffectedAssets); err != nil {
			return nil, fmt.Errorf("failed to unmarshal affected assets: %w", err)
		}
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &record.ExtraContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal extra context: %w", err)
		}
	}

	return &record, nil
}

func collectRecords(rows *sql.Rows) ([]models.AuditRecord, error) {
	records := []models.AuditRecord{}
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}
