package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rfinnegan/investment-tracker/internal/models"
)

// ---------------------------------------------------------------------------
// Mock HoldingsRepository
// ---------------------------------------------------------------------------

type tradeOp struct {
	PortfolioID int
	Symbol      string
	Side        string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
}

type mockHoldingsRepo struct {
	mu  sync.Mutex
	ops []tradeOp
	err error
}

func (m *mockHoldingsRepo) BuyHolding(_ context.Context, portfolioID int, symbol string, quantity, price decimal.Decimal) (*models.Holding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.ops = append(m.ops, tradeOp{portfolioID, symbol, "BUY", quantity, price})
	return &models.Holding{
		PortfolioID:         portfolioID,
		Symbol:              symbol,
		Quantity:            quantity,
		WeightedAvgBuyPrice: price,
	}, nil
}

func (m *mockHoldingsRepo) SellHolding(_ context.Context, portfolioID int, symbol string, quantity decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.ops = append(m.ops, tradeOp{PortfolioID: portfolioID, Symbol: symbol, Side: "SELL", Quantity: quantity})
	return nil
}

func (m *mockHoldingsRepo) applied() []tradeOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]tradeOp, len(m.ops))
	copy(cp, m.ops)
	return cp
}

func newTestConsumer(repo HoldingsRepository) *TradesConsumer {
	return &TradesConsumer{repo: repo, log: zerolog.Nop()}
}

func marshalTrade(t *testing.T, event TradeEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

// ---------------------------------------------------------------------------
// processMessage tests
// ---------------------------------------------------------------------------

func TestTradesConsumer_processMessage_Buy(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data: TradeEventData{
			PortfolioID: 1,
			Symbol:      "btc",
			Side:        "buy",
			Quantity:    "0.5",
			Price:       "50000",
		},
	})

	require.NoError(t, consumer.processMessage(context.Background(), kafkago.Message{Value: payload}))

	ops := repo.applied()
	require.Len(t, ops, 1)
	// Symbol and side are upper-cased
	assert.Equal(t, "BTC", ops[0].Symbol)
	assert.Equal(t, "BUY", ops[0].Side)
	assert.True(t, ops[0].Quantity.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, ops[0].Price.Equal(decimal.NewFromInt(50000)))
}

func TestTradesConsumer_processMessage_Sell(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data: TradeEventData{
			PortfolioID: 2,
			Symbol:      "ETH",
			Side:        "SELL",
			Quantity:    "3",
		},
	})

	require.NoError(t, consumer.processMessage(context.Background(), kafkago.Message{Value: payload}))

	ops := repo.applied()
	require.Len(t, ops, 1)
	assert.Equal(t, "SELL", ops[0].Side)
	assert.Equal(t, 2, ops[0].PortfolioID)
}

func TestTradesConsumer_processMessage_UnknownEventTypeIgnored(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{EventType: "SOMETHING_ELSE"})

	require.NoError(t, consumer.processMessage(context.Background(), kafkago.Message{Value: payload}))
	assert.Empty(t, repo.applied())
}

func TestTradesConsumer_processMessage_InvalidJSON(t *testing.T) {
	consumer := newTestConsumer(&mockHoldingsRepo{})

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: []byte("{invalid")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestTradesConsumer_processMessage_InvalidQuantity(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data:      TradeEventData{PortfolioID: 1, Symbol: "BTC", Side: "BUY", Quantity: "lots", Price: "1"},
	})

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.Error(t, err)
	assert.Empty(t, repo.applied())
}

func TestTradesConsumer_processMessage_UnknownSide(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data:      TradeEventData{PortfolioID: 1, Symbol: "BTC", Side: "SHORT", Quantity: "1", Price: "1"},
	})

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown trade side")
}

func TestTradesConsumer_processMessage_MissingSymbol(t *testing.T) {
	repo := &mockHoldingsRepo{}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data:      TradeEventData{PortfolioID: 1, Side: "BUY", Quantity: "1", Price: "1"},
	})

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing symbol")
}

func TestTradesConsumer_processMessage_RepoErrorPropagates(t *testing.T) {
	repo := &mockHoldingsRepo{err: assert.AnError}
	consumer := newTestConsumer(repo)

	payload := marshalTrade(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data:      TradeEventData{PortfolioID: 1, Symbol: "BTC", Side: "BUY", Quantity: "1", Price: "1"},
	})

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply buy")
}
