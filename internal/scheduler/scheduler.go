// Package scheduler runs the background pipeline: the periodic price refresh
// (fetch, cache, alert evaluation) and the daily snapshot job. Multiple
// worker processes may run these loops concurrently; a per-job lease ensures
// each cycle executes at most once system-wide.
package scheduler

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/cache"
	"github.com/rfinnegan/investment-tracker/internal/models"
)

// Fixed contractual cadences. These are not configuration.
const (
	RefreshInterval = 5 * time.Minute

	refreshJob  = "price-refresh"
	snapshotJob = "daily-snapshot"
)

// Locker is the distributed execution lock. Acquire returns false, not an
// error, when another worker holds the lease.
type Locker interface {
	Acquire(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error)
	Renew(ctx context.Context, jobName, holderID string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, jobName, holderID string) error
}

// PriceStore is the scheduler's view of the price cache.
type PriceStore interface {
	Put(ctx context.Context, symbol string, value decimal.Decimal, observedAt time.Time) error
	GetMany(ctx context.Context, symbols []string) (map[string]cache.Price, error)
}

// PriceFetcher is the price source adapter boundary.
type PriceFetcher interface {
	FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error)
}

// AlertEvaluator is invoked synchronously after each refreshed symbol is
// cached.
type AlertEvaluator interface {
	Evaluate(ctx context.Context, symbol string, newPrice decimal.Decimal) (int, error)
}

// SymbolSource yields the union of symbols referenced by holdings or active
// alerts.
type SymbolSource interface {
	ActiveSymbols(ctx context.Context) ([]string, error)
}

// SnapshotStore is what the snapshot job needs from persistent storage.
type SnapshotStore interface {
	GetAllPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	GetHoldings(ctx context.Context, portfolioID int) ([]models.Holding, error)
	UpsertSnapshot(ctx context.Context, s *models.Snapshot) error
}

// Clock abstracts time so cycle logic is testable with a simulated clock.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
