package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/rfinnegan/investment-tracker/internal/models"
)

// HoldingsRepository defines the holding mutations the consumer applies.
// Buys recompute the weighted average; a full sell removes the holding.
type HoldingsRepository interface {
	BuyHolding(ctx context.Context, portfolioID int, symbol string, quantity, price decimal.Decimal) (*models.Holding, error)
	SellHolding(ctx context.Context, portfolioID int, symbol string, quantity decimal.Decimal) error
}

// TradeEvent represents an executed trade from the trading platform
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData holds the trade details
type TradeEventData struct {
	PortfolioID int    `json:"portfolio_id"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"` // BUY or SELL
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
}

// TradesConsumer applies executed trades to portfolio holdings
type TradesConsumer struct {
	reader *kafka.Reader
	repo   HoldingsRepository
	log    zerolog.Logger
}

// NewTradesConsumer creates a new Kafka consumer for trade events
func NewTradesConsumer(brokers []string, topic, groupID string, repo HoldingsRepository, log zerolog.Logger) *TradesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-trades",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &TradesConsumer{
		reader: reader,
		repo:   repo,
		log:    log.With().Str("consumer", "trades").Logger(),
	}
}

// Start begins consuming messages from Kafka
func (c *TradesConsumer) Start(ctx context.Context) error {
	c.log.Info().Str("topic", c.reader.Config().Topic).Msg("starting trades consumer")

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("trades consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.log.Error().Err(err).Msg("error reading trade message")
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.log.Error().Err(err).Msg("error processing trade message")
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *TradesConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != "TRADE_EXECUTED" {
		c.log.Debug().Str("event_type", event.EventType).Msg("ignoring event type")
		return nil
	}

	return c.applyTrade(ctx, event.Data)
}

func (c *TradesConsumer) applyTrade(ctx context.Context, data TradeEventData) error {
	symbol := strings.ToUpper(data.Symbol)
	if symbol == "" {
		return fmt.Errorf("trade event missing symbol")
	}

	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return fmt.Errorf("invalid quantity %q: %w", data.Quantity, err)
	}

	switch strings.ToUpper(data.Side) {
	case "BUY":
		price, err := decimal.NewFromString(data.Price)
		if err != nil {
			return fmt.Errorf("invalid price %q: %w", data.Price, err)
		}
		holding, err := c.repo.BuyHolding(ctx, data.PortfolioID, symbol, quantity, price)
		if err != nil {
			return fmt.Errorf("failed to apply buy for %s: %w", symbol, err)
		}
		c.log.Info().
			Int("portfolio_id", data.PortfolioID).
			Str("symbol", symbol).
			Str("quantity", holding.Quantity.String()).
			Str("avg_price", holding.WeightedAvgBuyPrice.String()).
			Msg("buy applied")
		return nil

	case "SELL":
		if err := c.repo.SellHolding(ctx, data.PortfolioID, symbol, quantity); err != nil {
			return fmt.Errorf("failed to apply sell for %s: %w", symbol, err)
		}
		c.log.Info().
			Int("portfolio_id", data.PortfolioID).
			Str("symbol", symbol).
			Str("quantity", quantity.String()).
			Msg("sell applied")
		return nil

	default:
		return fmt.Errorf("unknown trade side: %q", data.Side)
	}
}

// Close closes the Kafka consumer
func (c *TradesConsumer) Close() error {
	return c.reader.Close()
}
