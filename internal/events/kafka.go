package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter is the subset of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaForwarder copies every domain event to a Kafka topic.
type KafkaForwarder struct {
	writer MessageWriter
	logger *zap.Logger
}

// NewKafkaWriter builds a writer for the events topic.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaForwarder wraps writer.
func NewKafkaForwarder(writer MessageWriter, logger *zap.Logger) *KafkaForwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaForwarder{writer: writer, logger: logger}
}

// Register subscribes the forwarder to every event.
func (f *KafkaForwarder) Register(dispatcher Dispatcher) {
	dispatcher.SubscribeAll(f.Forward)
}

// Forward writes event as a JSON message keyed by ticket id.
func (f *KafkaForwarder) Forward(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}
	if err := f.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("forward %s: %w", event.Type, err)
	}
	f.logger.Debug("event forwarded", zap.String("event_type", string(event.Type)), zap.String("key", event.Key()))
	return nil
}

// Close closes the underlying writer.
func (f *KafkaForwarder) Close() error {
	return f.writer.Close()
}
