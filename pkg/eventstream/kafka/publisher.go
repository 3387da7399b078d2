// Package kafka provides a Kafka-backed eventstream publisher using
// segmentio/kafka-go. Events are written as JSON values keyed by
// username, so all events for one user land on the same partition in
// order.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/reqvibe/reqvibe/pkg/eventstream"
)

// DefaultTopic is the topic session persistence events are published to
// when none is configured.
const DefaultTopic = "reqvibe.sessions"

// Config holds the Kafka publisher configuration.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic overrides DefaultTopic when non-empty.
	Topic string

	// Logger receives delivery warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// Publisher implements eventstream.Publisher on top of a kafka-go Writer.
type Publisher struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewPublisher creates a Kafka publisher. The writer is lazy: no
// connection is made until the first publish.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := c.Topic
	if topic == "" {
		topic = DefaultTopic
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Publisher{
		writer: &kafkago.Writer{
			Addr:         kafkago.TCP(c.Brokers...),
			Topic:        topic,
			Balancer:     &kafkago.Hash{},
			RequiredAcks: kafkago.RequireOne,
		},
		logger: logger,
	}, nil
}

// PublishSession writes the event to the configured topic, keyed by
// username.
func (p *Publisher) PublishSession(ctx context.Context, event *eventstream.SessionPersistedEvent) error {
	if event == nil {
		return eventstream.ErrNilSessionEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling session event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(event.Username),
		Value: value,
	})
	if err != nil {
		p.logger.Warn("kafka publish failed",
			"topic", p.writer.Topic,
			"event_id", event.EventID,
			"error", err,
		)
		return fmt.Errorf("publishing session event: %w", err)
	}

	return nil
}

// Close flushes and closes the underlying writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
