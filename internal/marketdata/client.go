package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/rfinnegan/investment-tracker/internal/config"
)

// ErrUpstreamUnavailable wraps transient provider failures that exhausted
// their retry budget. Callers fall back to the last cached price.
var ErrUpstreamUnavailable = errors.New("market data provider unavailable")

// Client is the adapter for the CoinGecko price API. Calls are rate limited
// by a token bucket; waits beyond maxWait fail the affected symbols only.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	maxWait time.Duration
	retry   RetryPolicy
	log     zerolog.Logger
}

// NewClient creates a market data client from configuration.
func NewClient(cfg config.MarketDataConfig, log zerolog.Logger) *Client {
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 30
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		maxWait: cfg.MaxWait,
		retry: RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			MaxDelay:    cfg.RetryMaxDelay,
		},
		log: log.With().Str("client", "coingecko").Logger(),
	}
}

// FetchPrices returns best-effort USD spot prices for the given symbols.
// The result may be partial: symbols that are unknown to the provider or
// whose fetch exhausted retries are simply absent. The returned error is
// non-nil only when no symbol could be fetched at all.
func (c *Client) FetchPrices(ctx context.Context, symbols []string) (map[string]decimal.Decimal, error) {
	ids := make([]string, 0, len(symbols))
	bySymbol := make(map[string]string, len(symbols)) // coin id -> ticker
	for _, s := range symbols {
		id, ok := CoinID(s)
		if !ok {
			c.log.Warn().Str("symbol", s).Msg("no provider mapping for symbol")
			continue
		}
		ids = append(ids, id)
		bySymbol[id] = strings.ToUpper(s)
	}
	if len(ids) == 0 {
		return map[string]decimal.Decimal{}, nil
	}

	if err := c.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	var body map[string]map[string]json.Number
	err := c.retry.Do(ctx, func() error {
		var fetchErr error
		body, fetchErr = c.simplePrice(ctx, ids)
		return fetchErr
	}, isTransient)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	prices := make(map[string]decimal.Decimal, len(ids))
	for id, quote := range body {
		symbol, ok := bySymbol[id]
		if !ok {
			continue
		}
		usd, ok := quote["usd"]
		if !ok {
			continue
		}
		value, perr := decimal.NewFromString(usd.String())
		if perr != nil || !value.IsPositive() {
			c.log.Warn().Str("symbol", symbol).Str("raw", usd.String()).Msg("discarding unparseable quote")
			continue
		}
		prices[symbol] = value
	}
	return prices, nil
}

// wait blocks until a rate limit token is available, bounded by maxWait.
func (c *Client) wait(ctx context.Context) error {
	waitCtx := ctx
	if c.maxWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, c.maxWait)
		defer cancel()
	}
	return c.limiter.Wait(waitCtx)
}

// statusError marks non-2xx responses so the retry policy can distinguish
// transient failures (5xx, 429) from permanent ones.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.code)
}

func isTransient(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.code >= 500 || se.code == http.StatusTooManyRequests
	}
	// Network errors and timeouts are retryable; malformed bodies are not.
	var jsonErr *json.SyntaxError
	if errors.As(err, &jsonErr) {
		return false
	}
	return !errors.Is(err, context.Canceled)
}

func (c *Client) simplePrice(ctx context.Context, ids []string) (map[string]map[string]json.Number, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, &statusError{code: resp.StatusCode}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var body map[string]map[string]json.Number
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("malformed response body: %w", err)
	}
	return body, nil
}
