package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finguard/finguard/internal/models"
	"github.com/google/uuid"
)

// PortfolioRepository handles portfolio and holding storage.
type PortfolioRepository struct {
	db *sql.DB
}

// NewPortfolioRepository creates a new portfolio repository.
func NewPortfolioRepository(db *sql.DB) *PortfolioRepository {
	return &PortfolioRepository{db: db}
}

// Upsert creates or replaces the user's portfolio and its holdings in one
// transaction. Holdings are rewritten wholesale; the portfolio row is the
// mutable working state, history lives in the audit ledger.
func (r *PortfolioRepository) Upsert(ctx context.Context, p models.Portfolio) error {
	targetsJSON, err := json.Marshal(p.TargetAllocations)
	if err != nil {
		return fmt.Errorf("failed to marshal target allocations: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolios (user_id, name, total_value, currency, target_allocations, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			name = EXCLUDED.name,
			total_value = EXCLUDED.total_value,
			currency = EXCLUDED.currency,
			target_allocations = EXCLUDED.target_allocations,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.Name, p.TotalValue, p.Currency, targetsJSON, now)
	if err != nil {
		return fmt.Errorf("failed to upsert portfolio: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE user_id = $1`, p.UserID); err != nil {
		return fmt.Errorf("failed to clear holdings: %w", err)
	}

	for _, h := range p.Holdings {
		id := h.ID
		if id == "" {
			id = uuid.New().String()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO holdings (id, user_id, symbol, name, category, quantity, current_price, target_allocation)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, id, p.UserID, h.Symbol, h.Name, h.Category, h.Quantity, h.CurrentPrice, h.TargetAllocation)
		if err != nil {
			return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
		}
	}

	return tx.Commit()
}

// Get returns the user's portfolio with holdings, or (nil, nil) when the
// user has none.
func (r *PortfolioRepository) Get(ctx context.Context, userID string) (*models.Portfolio, error) {
	var p models.Portfolio
	var targetsJSON []byte

	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, name, total_value, currency, target_allocations, created_at, updated_at
		FROM portfolios
		WHERE user_id = $1
	`, userID).Scan(&p.UserID, &p.Name, &p.TotalValue, &p.Currency, &targetsJSON, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(targetsJSON) > 0 {
		if err := json.Unmarshal(targetsJSON, &p.TargetAllocations); err != nil {
			return nil, fmt.Errorf("failed to unmarshal target allocations: %w", err)
		}
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, name, category, quantity, current_price, target_allocation
		FROM holdings
		WHERE user_id = $1
		ORDER BY symbol ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	p.Holdings = []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Name, &h.Category, &h.Quantity, &h.CurrentPrice, &h.TargetAllocation); err != nil {
			return nil, err
		}
		p.Holdings = append(p.Holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &p, nil
}

// List returns all portfolios with their holdings, for scheduled drift checks.
func (r *PortfolioRepository) List(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM portfolios ORDER BY user_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	portfolios := make([]models.Portfolio, 0, len(userIDs))
	for _, id := range userIDs {
		p, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if p != nil {
			portfolios = append(portfolios, *p)
		}
	}
	return portfolios, nil
}
