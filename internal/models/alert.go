package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AlertDirection is the side of the target price being watched.
type AlertDirection string

const (
	DirectionAbove AlertDirection = "above"
	DirectionBelow AlertDirection = "below"
)

// AlertState is the lifecycle state of an alert.
type AlertState string

const (
	// StateArmed means the alert is waiting for a threshold crossing.
	StateArmed AlertState = "armed"
	// StateTriggered means the alert has fired and not yet been acknowledged
	// or re-armed by the price crossing back through the target.
	StateTriggered AlertState = "triggered"
	// StateAcknowledged means the user has seen the trigger; the alert is
	// excluded from evaluation until reset.
	StateAcknowledged AlertState = "acknowledged"
)

// Alert is a user-defined price threshold watch on a symbol.
type Alert struct {
	ID                 int              `json:"id"`
	PortfolioID        int              `json:"portfolio_id"`
	Symbol             string           `json:"symbol"`
	Direction          AlertDirection   `json:"direction"`
	TargetPrice        decimal.Decimal  `json:"target_price"`
	State              AlertState       `json:"state"`
	LastEvaluatedPrice *decimal.Decimal `json:"last_evaluated_price,omitempty"`
	LastTransitionAt   *time.Time       `json:"last_transition_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// Validate checks the fields a client may supply.
func (a *Alert) Validate() error {
	if a.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if a.Direction != DirectionAbove && a.Direction != DirectionBelow {
		return fmt.Errorf("direction must be %q or %q", DirectionAbove, DirectionBelow)
	}
	if !a.TargetPrice.IsPositive() {
		return fmt.Errorf("target price must be positive")
	}
	return nil
}

// Crossed reports whether price is on the triggering side of the target.
func (a *Alert) Crossed(price decimal.Decimal) bool {
	if a.Direction == DirectionAbove {
		return price.GreaterThanOrEqual(a.TargetPrice)
	}
	return price.LessThanOrEqual(a.TargetPrice)
}

// TriggerID derives the idempotency key for a trigger notification from the
// alert id and the transition instant.
func (a *Alert) TriggerID(transitionAt time.Time) string {
	return fmt.Sprintf("%d:%d", a.ID, transitionAt.Unix())
}
