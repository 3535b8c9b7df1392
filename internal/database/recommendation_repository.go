package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finguard/finguard/internal/models"
)

// RecommendationRepository stores rebalancing recommendations and their
// lifecycle status.
type RecommendationRepository struct {
	db *sql.DB
}

// NewRecommendationRepository creates a new recommendation repository.
func NewRecommendationRepository(db *sql.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

// Create persists a new recommendation.
func (r *RecommendationRepository) Create(ctx context.Context, rec models.Recommendation) error {
	tradesJSON, err := json.Marshal(rec.Trades)
	if err != nil {
		return fmt.Errorf("failed to marshal trades: %w", err)
	}

	var impactJSON []byte
	if rec.ExpectedImpact != nil {
		impactJSON, err = json.Marshal(rec.ExpectedImpact)
		if err != nil {
			return fmt.Errorf("failed to marshal expected impact: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO recommendations (id, user_id, created_at, status, primary_concern, risk_level, trades, reasoning, confidence, expected_impact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, rec.ID, rec.UserID, rec.CreatedAt, rec.Status, rec.PrimaryConcern, rec.RiskLevel, tradesJSON, rec.Reasoning, rec.Confidence, impactJSON)

	return err
}

// Get returns the recommendation by id, or (nil, nil) when absent.
func (r *RecommendationRepository) Get(ctx context.Context, id string) (*models.Recommendation, error) {
	var rec models.Recommendation
	var tradesJSON, impactJSON []byte
	var executedAt sql.NullTime

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, created_at, status, primary_concern, risk_level, trades, reasoning, confidence, expected_impact, executed_at
		FROM recommendations
		WHERE id = $1
	`, id).Scan(&rec.ID, &rec.UserID, &rec.CreatedAt, &rec.Status, &rec.PrimaryConcern, &rec.RiskLevel, &tradesJSON, &rec.Reasoning, &rec.Confidence, &impactJSON, &executedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(tradesJSON) > 0 {
		if err := json.Unmarshal(tradesJSON, &rec.Trades); err != nil {
			return nil, fmt.Errorf("failed to unmarshal trades: %w", err)
		}
	}
	if len(impactJSON) > 0 {
		if err := json.Unmarshal(impactJSON, &rec.ExpectedImpact); err != nil {
			return nil, fmt.Errorf("failed to unmarshal expected impact: %w", err)
		}
	}
	if executedAt.Valid {
		t := executedAt.Time.UTC()
		rec.ExecutedAt = &t
	}

	return &rec, nil
}

// UpdateStatus transitions a recommendation's lifecycle state. When the new
// status is executed, executed_at is stamped.
func (r *RecommendationRepository) UpdateStatus(ctx context.Context, id, status string) error {
	var err error
	if status == models.RecommendationExecuted {
		_, err = r.db.ExecContext(ctx, `
			UPDATE recommendations SET status = $2, executed_at = $3 WHERE id = $1
		`, id, status, time.Now().UTC())
	} else {
		_, err = r.db.ExecContext(ctx, `
			UPDATE recommendations SET status = $2 WHERE id = $1
		`, id, status)
	}
	return err
}
