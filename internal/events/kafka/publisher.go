// Package kafka publishes domain events to Kafka topics.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/parisedai/budgetai/internal/events"
)

var _ events.Publisher = (*Publisher)(nil)

// MessageWriter is the subset of kafka.Writer used by Publisher.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher writes JSON-encoded events to Kafka. The topic of each message is
// the event topic with the configured prefix.
type Publisher struct {
	writer MessageWriter
	prefix string
}

// batchTimeout bounds how long a message waits in a partial batch.
const batchTimeout = 10 * time.Millisecond

// NewPublisher creates a Publisher writing to the given brokers.
// Writes are asynchronous: Publish returns once the message is queued and
// delivery failures are logged.
func NewPublisher(brokers []string, topicPrefix string) *Publisher {
	return NewPublisherWithWriter(newWriter(brokers), topicPrefix)
}

func newWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		BatchTimeout:           batchTimeout,
		Async:                  true,
		Completion:             logDeliveryFailure,
	}
}

func logDeliveryFailure(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}
	for _, m := range msgs {
		slog.Warn("Failed to deliver event", "topic", m.Topic, "error", err)
	}
}

// NewPublisherWithWriter creates a Publisher around an existing writer.
// The writer must not have a fixed Topic set.
func NewPublisherWithWriter(w MessageWriter, topicPrefix string) *Publisher {
	return &Publisher{writer: w, prefix: topicPrefix}
}

// Publish implements events.Publisher.
func (p *Publisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.prefix + topic,
		Value: data,
	}); err != nil {
		return fmt.Errorf("write %s event: %w", topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
