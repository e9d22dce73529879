// Package notify defines the notification dispatch boundary. The core only
// depends on the Dispatcher capability and its idempotency contract; the
// delivery channel behind it is out of scope.
package notify

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/models"
)

// TriggerNotice is a notification request for one alert trigger. TriggerID
// is unique per unbroken threshold crossing and downstream consumers must
// deduplicate on it, so dispatcher-side retries are safe.
type TriggerNotice struct {
	TriggerID     string                `json:"trigger_id"`
	AlertID       int                   `json:"alert_id"`
	PortfolioID   int                   `json:"portfolio_id"`
	Symbol        string                `json:"symbol"`
	Direction     models.AlertDirection `json:"direction"`
	TargetPrice   decimal.Decimal       `json:"target_price"`
	ObservedPrice decimal.Decimal       `json:"observed_price"`
	TransitionAt  time.Time             `json:"transition_at"`
}

// Dispatcher accepts notification requests. Implementations guarantee
// idempotent delivery per TriggerID.
type Dispatcher interface {
	Dispatch(ctx context.Context, notice TriggerNotice) error
}
