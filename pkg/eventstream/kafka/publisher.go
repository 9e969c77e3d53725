// Package kafka publishes vectorization events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/davidhonghikim/griot-sub000/pkg/eventstream"
)

const (
	DefaultTopic        = "griot.persona.vectorized"
	DefaultWriteTimeout = 10 * time.Second
)

// Config holds configuration for the Kafka publisher.
type Config struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes one message per event, keyed by entity id so events for
// the same persona stay ordered within a partition.
type Publisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a synchronous Kafka publisher.
func NewPublisher(c Config, logger *slog.Logger) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		WriteTimeout:           c.WriteTimeout,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka event publisher configured",
		"brokers", c.Brokers,
		"topic", c.Topic,
	)

	return newPublisher(w, c.Topic, logger), nil
}

func newPublisher(w messageWriter, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{writer: w, topic: topic, logger: logger}
}

// PublishVectorized encodes the event as JSON and writes it.
func (p *Publisher) PublishVectorized(ctx context.Context, event *eventstream.VectorizedEvent) error {
	if event == nil {
		return eventstream.ErrNilEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.EntityID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(strconv.Itoa(event.SchemaVersion))},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing event to %s: %w", p.topic, err)
	}

	p.logger.Debug("published vectorized event",
		"topic", p.topic,
		"event_id", event.EventID,
		"entity_id", event.EntityID,
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
