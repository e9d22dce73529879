package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/models"
)

// CreateAlert inserts a new alert in the armed state
func (db *DB) CreateAlert(ctx context.Context, a *models.Alert) error {
	a.Symbol = strings.ToUpper(a.Symbol)
	a.State = models.StateArmed

	query := `
		INSERT INTO alerts (portfolio_id, symbol, direction, target_price, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	now := time.Now()
	err := db.conn.QueryRowContext(ctx, query,
		a.PortfolioID, a.Symbol, a.Direction, a.TargetPrice, a.State, now, now,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// GetAlert retrieves an alert by ID
func (db *DB) GetAlert(ctx context.Context, id int) (*models.Alert, error) {
	query := `
		SELECT id, portfolio_id, symbol, direction, target_price, state,
		       last_evaluated_price, last_transition_at, created_at, updated_at
		FROM alerts
		WHERE id = $1
	`
	a, err := scanAlert(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return a, nil
}

// GetAllAlerts retrieves all alerts
func (db *DB) GetAllAlerts(ctx context.Context) ([]models.Alert, error) {
	query := `
		SELECT id, portfolio_id, symbol, direction, target_price, state,
		       last_evaluated_price, last_transition_at, created_at, updated_at
		FROM alerts
		ORDER BY id
	`
	return db.queryAlerts(ctx, query)
}

// ActiveBySymbol retrieves armed and triggered alerts on a symbol. This is
// the alert engine's scan set; acknowledged alerts are excluded.
func (db *DB) ActiveBySymbol(ctx context.Context, symbol string) ([]models.Alert, error) {
	query := `
		SELECT id, portfolio_id, symbol, direction, target_price, state,
		       last_evaluated_price, last_transition_at, created_at, updated_at
		FROM alerts
		WHERE symbol = $1 AND state IN ('armed', 'triggered')
		ORDER BY id
	`
	return db.queryAlerts(ctx, query, strings.ToUpper(symbol))
}

// UpdateEvaluation persists the evaluation outcome for an alert: its state,
// last evaluated price and last transition instant.
func (db *DB) UpdateEvaluation(ctx context.Context, a *models.Alert) error {
	query := `
		UPDATE alerts
		SET state = $2, last_evaluated_price = $3, last_transition_at = $4, updated_at = $5
		WHERE id = $1
	`
	var lastPrice interface{}
	if a.LastEvaluatedPrice != nil {
		lastPrice = a.LastEvaluatedPrice.String()
	}
	var lastTransition interface{}
	if a.LastTransitionAt != nil {
		lastTransition = *a.LastTransitionAt
	}

	result, err := db.conn.ExecContext(ctx, query, a.ID, a.State, lastPrice, lastTransition, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update alert %d: %w", a.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: %d", a.ID)
	}
	return nil
}

// SetAlertState moves an alert to the given state (acknowledge / reset).
func (db *DB) SetAlertState(ctx context.Context, id int, state models.AlertState) error {
	query := `
		UPDATE alerts
		SET state = $2, last_transition_at = $3, updated_at = $3
		WHERE id = $1
	`
	result, err := db.conn.ExecContext(ctx, query, id, state, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set alert %d state: %w", id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: %d", id)
	}
	return nil
}

// DeleteAlert removes an alert by ID
func (db *DB) DeleteAlert(ctx context.Context, id int) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found: %d", id)
	}
	return nil
}

func (db *DB) queryAlerts(ctx context.Context, query string, args ...interface{}) ([]models.Alert, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAlert(row rowScanner) (*models.Alert, error) {
	var a models.Alert
	var lastPrice sql.NullString
	var lastTransition sql.NullTime

	err := row.Scan(
		&a.ID, &a.PortfolioID, &a.Symbol, &a.Direction, &a.TargetPrice, &a.State,
		&lastPrice, &lastTransition, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastPrice.Valid {
		p, perr := decimal.NewFromString(lastPrice.String)
		if perr == nil {
			a.LastEvaluatedPrice = &p
		}
	}
	if lastTransition.Valid {
		t := lastTransition.Time
		a.LastTransitionAt = &t
	}
	return &a, nil
}
