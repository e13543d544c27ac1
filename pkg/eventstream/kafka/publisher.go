// Package kafka publishes assembled message events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatstream/pkg/eventstream"
)

// HeaderEventType carries the event type on every record.
const HeaderEventType = "event_type"

const defaultBatchTimeout = 50 * time.Millisecond

// Writer is the subset of *kafka.Writer the publisher uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures a Publisher.
type Config struct {
	// Brokers lists the bootstrap broker addresses. Required.
	Brokers []string

	// Topic receives every event. Required.
	Topic string

	// BatchTimeout bounds how long the writer waits to fill a batch.
	BatchTimeout time.Duration

	Logger *slog.Logger
}

// Publisher writes events as JSON records keyed by message id, so every
// event for one message lands on the same partition.
type Publisher struct {
	writer Writer
	topic  string
}

var _ eventstream.Publisher = (*Publisher)(nil)

// NewPublisher validates c and returns a publisher backed by a kafka.Writer.
// No connection is made until the first publish.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if c.Topic == "" {
		return nil, errors.New("kafka publisher requires a topic")
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = defaultBatchTimeout
	}
	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		BatchTimeout:           c.BatchTimeout,
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		Logger: kafkago.LoggerFunc(func(msg string, args ...any) {
			logger.Debug(fmt.Sprintf(msg, args...), "topic", c.Topic)
		}),
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...any) {
			logger.Error(fmt.Sprintf(msg, args...), "topic", c.Topic)
		}),
	}
	return NewPublisherWithWriter(w, c.Topic), nil
}

// NewPublisherWithWriter wraps an existing writer. The writer must already
// be bound to topic.
func NewPublisherWithWriter(w Writer, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic}
}

// PublishMessage encodes event and writes it synchronously.
func (p *Publisher) PublishMessage(ctx context.Context, event *eventstream.MessageAssembledEvent) error {
	if event == nil {
		return eventstream.ErrNilMessageEvent
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding message event: %w", err)
	}

	record := kafkago.Message{
		Key:   []byte(event.Message.ID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: HeaderEventType, Value: []byte(event.EventType)},
		},
	}
	if err := p.writer.WriteMessages(ctx, record); err != nil {
		return fmt.Errorf("writing to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending writes and releases the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
