package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaDispatcher publishes trigger notices to a Kafka topic. The message
// key is the trigger id, which is what downstream consumers dedupe on.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

// NewKafkaDispatcher creates a dispatcher writing to the given topic.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Dispatch publishes one notice.
func (d *KafkaDispatcher) Dispatch(ctx context.Context, notice TriggerNotice) error {
	value, err := json.Marshal(notice)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger notice: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(notice.TriggerID),
		Value: value,
		Time:  notice.TransitionAt,
	}
	if err := d.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish trigger %s: %w", notice.TriggerID, err)
	}
	return nil
}

// Close closes the underlying writer.
func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}
