package database

import (
	"context"
	"fmt"
	"time"

	"github.com/rfinnegan/investment-tracker/internal/models"
)

// UpsertSnapshot writes one valuation row per (portfolio_id, snapshot_date).
// Re-running for the same day overwrites rather than duplicates, which is
// what makes the snapshot job safe to retry wholesale.
func (db *DB) UpsertSnapshot(ctx context.Context, s *models.Snapshot) error {
	query := `
		INSERT INTO snapshots (portfolio_id, snapshot_date, total_value, pnl_percent, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (portfolio_id, snapshot_date)
		DO UPDATE SET
			total_value = EXCLUDED.total_value,
			pnl_percent = EXCLUDED.pnl_percent,
			created_at = EXCLUDED.created_at
		RETURNING id
	`
	day := s.Date.UTC().Truncate(24 * time.Hour)
	err := db.conn.QueryRowContext(ctx, query,
		s.PortfolioID, day, s.TotalValue, s.PnLPercent, time.Now(),
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for portfolio %d: %w", s.PortfolioID, err)
	}
	return nil
}

// GetSnapshots retrieves the snapshot history for a portfolio, newest first
func (db *DB) GetSnapshots(ctx context.Context, portfolioID int, limit int) ([]models.Snapshot, error) {
	query := `
		SELECT id, portfolio_id, snapshot_date, total_value, pnl_percent, created_at
		FROM snapshots
		WHERE portfolio_id = $1
		ORDER BY snapshot_date DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.Snapshot
	for rows.Next() {
		var s models.Snapshot
		if err := rows.Scan(&s.ID, &s.PortfolioID, &s.Date, &s.TotalValue, &s.PnLPercent, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
