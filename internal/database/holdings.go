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

// GetHoldings retrieves all holdings for a portfolio
func (db *DB) GetHoldings(ctx context.Context, portfolioID int) ([]models.Holding, error) {
	query := `
		SELECT id, portfolio_id, symbol, quantity, weighted_avg_buy_price, created_at, updated_at
		FROM holdings
		WHERE portfolio_id = $1
		ORDER BY symbol
	`
	rows, err := db.conn.QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to get holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.ID, &h.PortfolioID, &h.Symbol, &h.Quantity,
			&h.WeightedAvgBuyPrice, &h.CreatedAt, &h.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// BuyHolding applies a buy to the (portfolio, symbol) holding, creating it if
// absent and recomputing the weighted average buy price otherwise. The row is
// locked for the duration of the transaction so concurrent buys serialize.
func (db *DB) BuyHolding(ctx context.Context, portfolioID int, symbol string, quantity, price decimal.Decimal) (*models.Holding, error) {
	symbol = strings.ToUpper(symbol)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	h := models.Holding{PortfolioID: portfolioID, Symbol: symbol}
	now := time.Now()

	query := `
		SELECT id, quantity, weighted_avg_buy_price
		FROM holdings
		WHERE portfolio_id = $1 AND symbol = $2
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, query, portfolioID, symbol).Scan(&h.ID, &h.Quantity, &h.WeightedAvgBuyPrice)
	switch {
	case err == sql.ErrNoRows:
		h.Quantity = decimal.Zero
		h.WeightedAvgBuyPrice = decimal.Zero
		if err := h.ApplyBuy(quantity, price); err != nil {
			return nil, err
		}
		insert := `
			INSERT INTO holdings (portfolio_id, symbol, quantity, weighted_avg_buy_price, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`
		if err := tx.QueryRowContext(ctx, insert, portfolioID, symbol, h.Quantity,
			h.WeightedAvgBuyPrice, now, now).Scan(&h.ID); err != nil {
			return nil, fmt.Errorf("failed to insert holding %s: %w", symbol, err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to lock holding %s: %w", symbol, err)
	default:
		if err := h.ApplyBuy(quantity, price); err != nil {
			return nil, err
		}
		update := `
			UPDATE holdings
			SET quantity = $2, weighted_avg_buy_price = $3, updated_at = $4
			WHERE id = $1
		`
		if _, err := tx.ExecContext(ctx, update, h.ID, h.Quantity, h.WeightedAvgBuyPrice, now); err != nil {
			return nil, fmt.Errorf("failed to update holding %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	h.UpdatedAt = now
	return &h, nil
}

// SellHolding reduces the held quantity; a full sell removes the holding.
func (db *DB) SellHolding(ctx context.Context, portfolioID int, symbol string, quantity decimal.Decimal) error {
	symbol = strings.ToUpper(symbol)

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var h models.Holding
	query := `
		SELECT id, quantity, weighted_avg_buy_price
		FROM holdings
		WHERE portfolio_id = $1 AND symbol = $2
		FOR UPDATE
	`
	err = tx.QueryRowContext(ctx, query, portfolioID, symbol).Scan(&h.ID, &h.Quantity, &h.WeightedAvgBuyPrice)
	if err == sql.ErrNoRows {
		return fmt.Errorf("holding not found: %s", symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to lock holding %s: %w", symbol, err)
	}

	closed, err := h.ApplySell(quantity)
	if err != nil {
		return err
	}

	if closed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM holdings WHERE id = $1`, h.ID); err != nil {
			return fmt.Errorf("failed to remove holding %s: %w", symbol, err)
		}
	} else {
		update := `UPDATE holdings SET quantity = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, update, h.ID, h.Quantity, time.Now()); err != nil {
			return fmt.Errorf("failed to update holding %s: %w", symbol, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ActiveSymbols returns the union of symbols referenced by any holding or by
// any alert that is not acknowledged. This is the refresh cycle's work set.
func (db *DB) ActiveSymbols(ctx context.Context) ([]string, error) {
	query := `
		SELECT symbol FROM holdings
		UNION
		SELECT symbol FROM alerts WHERE state <> 'acknowledged'
		ORDER BY symbol
	`
	rows, err := db.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get active symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}
