package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/config"
)

// ErrNotFound is returned when a symbol has never been cached. Callers must
// treat this distinctly from staleness: a stale entry still carries a price.
var ErrNotFound = errors.New("price not cached")

// retention bounds how long Redis keeps an entry at all. It is deliberately
// much longer than the freshness TTL so stale prices remain readable during
// upstream outages.
const retention = 30 * 24 * time.Hour

// Price is a cached observation for one symbol.
type Price struct {
	Symbol     string          `json:"symbol"`
	Value      decimal.Decimal `json:"value"`
	ObservedAt time.Time       `json:"observed_at"`
	Stale      bool            `json:"stale"`
}

// entry is the wire form stored in Redis.
type entry struct {
	Value      decimal.Decimal `json:"value"`
	ObservedAt time.Time       `json:"observed_at"`
}

// PriceCache is a time-bounded store of symbol prices backed by Redis.
// Last write wins per symbol; reads during a write are safe because each
// entry is a single Redis value.
type PriceCache struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// New creates a PriceCache and verifies the Redis connection.
func New(cfg config.RedisConfig, ttl time.Duration) (*PriceCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &PriceCache{rdb: rdb, ttl: ttl, now: time.Now}, nil
}

// Close closes the Redis connection.
func (c *PriceCache) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable.
func (c *PriceCache) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func key(symbol string) string {
	return "price:" + symbol
}

// Put stores a price observation for a symbol.
func (c *PriceCache) Put(ctx context.Context, symbol string, value decimal.Decimal, observedAt time.Time) error {
	data, err := json.Marshal(entry{Value: value, ObservedAt: observedAt})
	if err != nil {
		return fmt.Errorf("failed to marshal price entry: %w", err)
	}
	if err := c.rdb.Set(ctx, key(symbol), data, retention).Err(); err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", symbol, err)
	}
	return nil
}

// Get retrieves the cached price for a symbol. Entries older than the
// freshness TTL are returned with Stale=true rather than omitted.
func (c *PriceCache) Get(ctx context.Context, symbol string) (Price, error) {
	data, err := c.rdb.Get(ctx, key(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Price{}, fmt.Errorf("%w: %s", ErrNotFound, symbol)
	}
	if err != nil {
		return Price{}, fmt.Errorf("failed to read cached price for %s: %w", symbol, err)
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Price{}, fmt.Errorf("failed to unmarshal cached price for %s: %w", symbol, err)
	}

	return toPrice(symbol, e, c.now(), c.ttl), nil
}

// GetMany retrieves cached prices for a set of symbols in one round trip.
// Symbols with no entry are simply absent from the result.
func (c *PriceCache) GetMany(ctx context.Context, symbols []string) (map[string]Price, error) {
	if len(symbols) == 0 {
		return map[string]Price{}, nil
	}

	keys := make([]string, len(symbols))
	for i, s := range symbols {
		keys[i] = key(s)
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read cached prices: %w", err)
	}

	now := c.now()
	prices := make(map[string]Price, len(symbols))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue // nil: never cached
		}
		var e entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cached price for %s: %w", symbols[i], err)
		}
		prices[symbols[i]] = toPrice(symbols[i], e, now, c.ttl)
	}
	return prices, nil
}

func toPrice(symbol string, e entry, now time.Time, ttl time.Duration) Price {
	return Price{
		Symbol:     symbol,
		Value:      e.Value,
		ObservedAt: e.ObservedAt,
		Stale:      now.Sub(e.ObservedAt) >= ttl,
	}
}
