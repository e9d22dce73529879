package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/rfinnegan/investment-tracker/internal/marketdata"
	"github.com/rfinnegan/investment-tracker/internal/metrics"
)

// RefreshWorker drives the market-data refresh pipeline:
// lock -> fetch -> cache -> evaluate alerts -> release.
type RefreshWorker struct {
	locker    Locker
	symbols   SymbolSource
	fetcher   PriceFetcher
	cache     PriceStore
	evaluator AlertEvaluator
	holderID  string
	leaseTTL  time.Duration
	clock     Clock
	log       zerolog.Logger
}

// NewRefreshWorker wires a refresh worker.
func NewRefreshWorker(locker Locker, symbols SymbolSource, fetcher PriceFetcher,
	cache PriceStore, evaluator AlertEvaluator, holderID string, leaseTTL time.Duration,
	log zerolog.Logger) *RefreshWorker {
	return &RefreshWorker{
		locker:    locker,
		symbols:   symbols,
		fetcher:   fetcher,
		cache:     cache,
		evaluator: evaluator,
		holderID:  holderID,
		leaseTTL:  leaseTTL,
		clock:     realClock{},
		log:       log.With().Str("job", refreshJob).Logger(),
	}
}

// Run fires RunCycle every RefreshInterval until the context is cancelled.
// No stage failure ever stops the loop; the next tick is the retry.
func (w *RefreshWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(RefreshInterval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", RefreshInterval).Msg("refresh worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("refresh worker stopped")
			return
		case <-ticker.C:
			if err := w.RunCycle(ctx); err != nil {
				w.log.Error().Err(err).Msg("refresh cycle failed; retrying next tick")
			}
		}
	}
}

// RunCycle executes one refresh cycle. A cycle that loses the lease race is
// a no-op, not an error: this is expected steady state with several workers.
func (w *RefreshWorker) RunCycle(ctx context.Context) error {
	granted, err := w.locker.Acquire(ctx, refreshJob, w.holderID, w.leaseTTL)
	if err != nil {
		metrics.RefreshCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("lease acquisition failed: %w", err)
	}
	if !granted {
		metrics.RefreshCycles.WithLabelValues("skipped").Inc()
		metrics.LeaseDenied.WithLabelValues(refreshJob).Inc()
		w.log.Debug().Msg("lease held by another worker; skipping tick")
		return nil
	}
	defer func() {
		if err := w.locker.Release(ctx, refreshJob, w.holderID); err != nil {
			w.log.Warn().Err(err).Msg("lease release failed")
		}
	}()

	start := w.clock.Now()

	symbols, err := w.symbols.ActiveSymbols(ctx)
	if err != nil {
		metrics.RefreshCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to collect active symbols: %w", err)
	}
	if len(symbols) == 0 {
		metrics.RefreshCycles.WithLabelValues("ok").Inc()
		w.log.Debug().Msg("no active symbols; nothing to refresh")
		return nil
	}

	prices, err := w.fetcher.FetchPrices(ctx, symbols)
	if err != nil {
		if errors.Is(err, marketdata.ErrUpstreamUnavailable) {
			// Total outage: complete the cycle with no cache writes so the
			// next tick is unaffected. Readers fall back to stale entries.
			metrics.PriceFetchFailures.Inc()
			metrics.RefreshCycles.WithLabelValues("degraded").Inc()
			w.log.Warn().Err(err).Int("symbols", len(symbols)).
				Msg("upstream unavailable; cycle degraded to stale cache")
			return nil
		}
		metrics.RefreshCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("price fetch failed: %w", err)
	}

	observedAt := w.clock.Now()
	refreshed := 0
	triggered := 0
	var firstErr error
	for _, symbol := range symbols {
		price, ok := prices[symbol]
		if !ok {
			// Partial failure for this symbol; its last cached price
			// remains and will read as stale once past its TTL.
			continue
		}

		// Ordering guarantee: the cache write for a symbol completes
		// before alert evaluation reads that symbol.
		if err := w.cache.Put(ctx, symbol, price, observedAt); err != nil {
			w.log.Error().Err(err).Str("symbol", symbol).Msg("cache write failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		refreshed++

		n, err := w.evaluator.Evaluate(ctx, symbol, price)
		if err != nil {
			w.log.Error().Err(err).Str("symbol", symbol).Msg("alert evaluation failed")
			if firstErr == nil {
				firstErr = err
			}
		}
		triggered += n
	}
	metrics.CachedSymbols.Set(float64(refreshed))
	metrics.AlertsTriggered.Add(float64(triggered))

	result := "ok"
	if refreshed == 0 {
		result = "degraded"
		w.log.Warn().Int("symbols", len(symbols)).Msg("refresh cycle wrote no prices")
	}
	metrics.RefreshCycles.WithLabelValues(result).Inc()

	w.log.Info().
		Int("symbols", len(symbols)).
		Int("refreshed", refreshed).
		Int("triggered", triggered).
		Dur("elapsed", w.clock.Now().Sub(start)).
		Msg("refresh cycle complete")
	return firstErr
}
