package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rfinnegan/investment-tracker/internal/models"
)

// CreatePortfolio inserts a new portfolio
func (db *DB) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	query := `
		INSERT INTO portfolios (name, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRowContext(ctx, query, p.Name, p.Description, now, now).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// GetPortfolio retrieves a portfolio by ID
func (db *DB) GetPortfolio(ctx context.Context, id int) (*models.Portfolio, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM portfolios
		WHERE id = $1
	`
	var p models.Portfolio
	var description sql.NullString
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("portfolio not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}
	if description.Valid {
		p.Description = description.String
	}
	return &p, nil
}

// GetAllPortfolios retrieves all portfolios
func (db *DB) GetAllPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	query := `
		SELECT id, name, description, created_at, updated_at
		FROM portfolios
		ORDER BY id
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*models.Portfolio
	for rows.Next() {
		var p models.Portfolio
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		if description.Valid {
			p.Description = description.String
		}
		portfolios = append(portfolios, &p)
	}
	return portfolios, rows.Err()
}

// DeletePortfolio removes a portfolio and, via cascade, its holdings,
// alerts and snapshots
func (db *DB) DeletePortfolio(ctx context.Context, id int) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM portfolios WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("portfolio not found: %d", id)
	}
	return nil
}
