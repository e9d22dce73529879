package cache

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToPrice_FreshWithinTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := entry{Value: decimal.NewFromInt(50000), ObservedAt: now.Add(-4 * time.Minute)}

	p := toPrice("BTC", e, now, 10*time.Minute)

	assert.False(t, p.Stale)
	assert.True(t, p.Value.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "BTC", p.Symbol)
}

func TestToPrice_StalePastTTL_KeepsOriginalValue(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 10 * time.Minute
	// Written ttl+1s ago: stale, but the original price is still served.
	e := entry{Value: decimal.NewFromFloat(50123.45), ObservedAt: now.Add(-ttl - time.Second)}

	p := toPrice("BTC", e, now, ttl)

	assert.True(t, p.Stale)
	assert.True(t, p.Value.Equal(decimal.NewFromFloat(50123.45)))
}

func TestToPrice_ExactlyAtTTLBoundaryIsStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute
	e := entry{Value: decimal.NewFromInt(100), ObservedAt: now.Add(-ttl)}

	p := toPrice("ETH", e, now, ttl)

	assert.True(t, p.Stale)
}
