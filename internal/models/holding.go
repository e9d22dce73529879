package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidQuantity is returned for zero or negative trade quantities.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInsufficientQuantity is returned when a sell exceeds the held quantity.
	ErrInsufficientQuantity = errors.New("sell quantity exceeds held quantity")
)

// Holding represents a position in a single symbol within a portfolio.
// Quantity is never negative; WeightedAvgBuyPrice is recomputed on every buy.
type Holding struct {
	ID                  int             `json:"id"`
	PortfolioID         int             `json:"portfolio_id"`
	Symbol              string          `json:"symbol"`
	Quantity            decimal.Decimal `json:"quantity"`
	WeightedAvgBuyPrice decimal.Decimal `json:"weighted_avg_buy_price"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// ApplyBuy folds a buy into the holding, recomputing the weighted average:
// new_avg = (old_avg*old_qty + price*qty) / (old_qty+qty).
func (h *Holding) ApplyBuy(quantity, price decimal.Decimal) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if price.IsNegative() {
		return errors.New("buy price must not be negative")
	}

	oldValue := h.WeightedAvgBuyPrice.Mul(h.Quantity)
	addedValue := price.Mul(quantity)
	total := h.Quantity.Add(quantity)

	h.WeightedAvgBuyPrice = oldValue.Add(addedValue).Div(total)
	h.Quantity = total
	return nil
}

// ApplySell reduces the held quantity. It returns true when the position is
// fully closed, in which case the caller removes the holding.
func (h *Holding) ApplySell(quantity decimal.Decimal) (closed bool, err error) {
	if !quantity.IsPositive() {
		return false, ErrInvalidQuantity
	}
	if quantity.GreaterThan(h.Quantity) {
		return false, ErrInsufficientQuantity
	}

	h.Quantity = h.Quantity.Sub(quantity)
	return h.Quantity.IsZero(), nil
}

// CostBasis returns quantity * weighted average buy price.
func (h *Holding) CostBasis() decimal.Decimal {
	return h.Quantity.Mul(h.WeightedAvgBuyPrice)
}
