package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rfinnegan/investment-tracker/internal/metrics"
	"github.com/rfinnegan/investment-tracker/internal/models"
	"github.com/rfinnegan/investment-tracker/internal/valuation"
)

// SnapshotWorker records one valuation snapshot per portfolio per UTC day.
// The upsert key (portfolio_id, date) makes reruns idempotent: a crash
// partway through is resumable by simply running the day again.
type SnapshotWorker struct {
	locker   Locker
	store    SnapshotStore
	cache    PriceStore
	holderID string
	leaseTTL time.Duration
	clock    Clock
	log      zerolog.Logger
}

// NewSnapshotWorker wires a snapshot worker.
func NewSnapshotWorker(locker Locker, store SnapshotStore, cache PriceStore,
	holderID string, leaseTTL time.Duration, log zerolog.Logger) *SnapshotWorker {
	return &SnapshotWorker{
		locker:   locker,
		store:    store,
		cache:    cache,
		holderID: holderID,
		leaseTTL: leaseTTL,
		clock:    realClock{},
		log:      log.With().Str("job", snapshotJob).Logger(),
	}
}

// Run fires RunCycle at every 00:00 UTC until the context is cancelled.
func (w *SnapshotWorker) Run(ctx context.Context) {
	w.log.Info().Msg("snapshot worker started")
	for {
		now := w.clock.Now().UTC()
		next := nextMidnightUTC(now)
		timer := time.NewTimer(next.Sub(now))

		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info().Msg("snapshot worker stopped")
			return
		case <-timer.C:
			if err := w.RunCycle(ctx, next); err != nil {
				w.log.Error().Err(err).Msg("snapshot cycle failed; retrying next day")
			}
		}
	}
}

func nextMidnightUTC(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
}

// RunCycle snapshots every portfolio for the given UTC day. Losing the lease
// race is a no-op. Completed portfolios are overwritten on rerun with no
// observable inconsistency, since the upsert is commutative with repetition.
func (w *SnapshotWorker) RunCycle(ctx context.Context, day time.Time) error {
	granted, err := w.locker.Acquire(ctx, snapshotJob, w.holderID, w.leaseTTL)
	if err != nil {
		return fmt.Errorf("lease acquisition failed: %w", err)
	}
	if !granted {
		metrics.LeaseDenied.WithLabelValues(snapshotJob).Inc()
		w.log.Debug().Msg("lease held by another worker; skipping snapshot run")
		return nil
	}
	defer func() {
		if err := w.locker.Release(ctx, snapshotJob, w.holderID); err != nil {
			w.log.Warn().Err(err).Msg("lease release failed")
		}
	}()

	portfolios, err := w.store.GetAllPortfolios(ctx)
	if err != nil {
		return fmt.Errorf("failed to list portfolios: %w", err)
	}

	day = day.UTC().Truncate(24 * time.Hour)
	written := 0
	var firstErr error
	for _, p := range portfolios {
		if err := w.snapshotOne(ctx, p, day); err != nil {
			w.log.Error().Err(err).Int("portfolio_id", p.ID).Msg("snapshot failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		written++
	}
	metrics.SnapshotsWritten.Add(float64(written))

	w.log.Info().
		Time("day", day).
		Int("portfolios", len(portfolios)).
		Int("written", written).
		Msg("snapshot cycle complete")
	return firstErr
}

func (w *SnapshotWorker) snapshotOne(ctx context.Context, p *models.Portfolio, day time.Time) error {
	holdings, err := w.store.GetHoldings(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load holdings: %w", err)
	}

	symbols := make([]string, 0, len(holdings))
	for _, h := range holdings {
		symbols = append(symbols, h.Symbol)
	}
	prices, err := w.cache.GetMany(ctx, symbols)
	if err != nil {
		return fmt.Errorf("failed to read price cache: %w", err)
	}

	result := valuation.Valuate(holdings, prices)
	if len(result.StaleSymbols) > 0 || len(result.MissingSymbols) > 0 {
		w.log.Warn().
			Int("portfolio_id", p.ID).
			Strs("stale", result.StaleSymbols).
			Strs("missing", result.MissingSymbols).
			Msg("snapshot valued with degraded prices")
	}

	return w.store.UpsertSnapshot(ctx, &models.Snapshot{
		PortfolioID: p.ID,
		Date:        day,
		TotalValue:  result.TotalValue,
		PnLPercent:  result.PnLPercent,
	})
}
