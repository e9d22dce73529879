package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfinnegan/investment-tracker/internal/config"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()
	return NewClient(config.MarketDataConfig{
		BaseURL:           serverURL,
		RequestsPerMinute: 6000, // effectively unlimited for tests
		MaxWait:           time.Second,
		RequestTimeout:    2 * time.Second,
		RetryMaxAttempts:  3,
		RetryBaseDelay:    time.Millisecond,
		RetryMaxDelay:     5 * time.Millisecond,
	}, zerolog.Nop())
}

func TestFetchPrices_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		w.Write([]byte(`{"bitcoin":{"usd":50000.5},"ethereum":{"usd":3000}}`))
	}))
	defer srv.Close()

	prices, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.True(t, prices["BTC"].Equal(decimal.NewFromFloat(50000.5)))
	assert.True(t, prices["ETH"].Equal(decimal.NewFromInt(3000)))
}

func TestFetchPrices_PartialResult_MissingSymbolOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Provider only knows bitcoin this time.
		w.Write([]byte(`{"bitcoin":{"usd":49000}}`))
	}))
	defer srv.Close()

	prices, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices["BTC"].Equal(decimal.NewFromInt(49000)))
	_, ok := prices["ETH"]
	assert.False(t, ok)
}

func TestFetchPrices_UnmappedSymbolSkipped(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	prices, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"NOPE"})
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.False(t, called, "no provider call should be made for unmapped symbols")
}

func TestFetchPrices_RetriesOn500ThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"bitcoin":{"usd":51000}}`))
	}))
	defer srv.Close()

	prices, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"BTC"})
	require.NoError(t, err)
	assert.True(t, prices["BTC"].Equal(decimal.NewFromInt(51000)))
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchPrices_ExhaustedRetriesReturnUpstreamUnavailable(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"BTC"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, int32(3), calls.Load(), "should stop after MaxAttempts")
}

func TestFetchPrices_MalformedBodyNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"BTC"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.Equal(t, int32(1), calls.Load(), "malformed bodies are permanent failures")
}

func TestFetchPrices_NonPositiveQuoteDiscarded(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"bitcoin":{"usd":0},"ethereum":{"usd":2500}}`))
	}))
	defer srv.Close()

	prices, err := testClient(t, srv.URL).FetchPrices(context.Background(), []string{"BTC", "ETH"})
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.True(t, prices["ETH"].Equal(decimal.NewFromInt(2500)))
}

func TestRetryPolicy_BackoffGrowsAndCaps(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: 100 * time.Millisecond, MaxDelay: 400 * time.Millisecond}

	for attempt, want := range []time.Duration{100, 200, 400, 400} {
		d := p.Backoff(attempt)
		base := want * time.Millisecond
		assert.GreaterOrEqual(t, d, base, "attempt %d", attempt)
		assert.LessOrEqual(t, d, base+p.BaseDelay, "attempt %d jitter bound", attempt)
	}
}

func TestRetryPolicy_DoStopsOnNonRetryable(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	calls := 0
	permanent := errors.New("permanent")

	err := p.Do(context.Background(), func() error {
		calls++
		return permanent
	}, func(error) bool { return false })

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}
