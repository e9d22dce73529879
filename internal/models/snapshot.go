package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is one daily valuation row per portfolio. (PortfolioID, Date) is a
// unique key and writes are upserts, so reruns for the same day overwrite.
type Snapshot struct {
	ID          int             `json:"id"`
	PortfolioID int             `json:"portfolio_id"`
	Date        time.Time       `json:"date"`
	TotalValue  decimal.Decimal `json:"total_value"`
	PnLPercent  decimal.Decimal `json:"pnl_percent"`
	CreatedAt   time.Time       `json:"created_at"`
}

// SchedulerLease records current ownership of a scheduled job slot. It is a
// coordination record, not domain data; an expired lease is acquirable by any
// worker.
type SchedulerLease struct {
	JobName   string    `json:"job_name"`
	HolderID  string    `json:"holder_id"`
	ExpiresAt time.Time `json:"expires_at"`
}
