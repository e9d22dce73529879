// Package metrics exposes Prometheus collectors for the background pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RefreshCycles counts refresh cycles by result: ok, degraded, error, skipped.
	RefreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "refresh_cycles_total",
		Help: "Price refresh cycles run, by result.",
	}, []string{"result"})

	// PriceFetchFailures counts upstream fetch failures after retries.
	PriceFetchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "price_fetch_failures_total",
		Help: "Market data fetches that exhausted their retry budget.",
	})

	// AlertsTriggered counts alert state transitions to triggered.
	AlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alerts_triggered_total",
		Help: "Alerts that crossed their threshold and fired.",
	})

	// SnapshotsWritten counts snapshot rows upserted.
	SnapshotsWritten = promauto.NewCounter(prometheus.CounterOpts{
		Name: "snapshots_written_total",
		Help: "Daily portfolio snapshot rows written.",
	})

	// LeaseDenied counts lease acquisitions lost to another worker.
	LeaseDenied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lease_denied_total",
		Help: "Scheduled cycles skipped because another worker held the lease.",
	}, []string{"job"})

	// CachedSymbols reports how many symbols the last refresh cycle wrote.
	CachedSymbols = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "refresh_cached_symbols",
		Help: "Symbols written to the price cache by the last refresh cycle.",
	})
)
