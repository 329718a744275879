// Package events publishes domain events about doses and reports to Kafka
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// messageWriter is the subset of kafka.Writer the publisher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes domain events to a topic keyed by user, so events of
// one user stay ordered within a partition
type KafkaPublisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewKafkaPublisher creates a publisher for the given brokers and topic
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(writer, logger)
}

func newKafkaPublisher(writer messageWriter, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: writer,
		logger: logger,
	}
}

// Publish writes one event
func (p *KafkaPublisher) Publish(ctx context.Context, event model.DomainEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.UserID),
		Value: value,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("failed to publish event",
			zap.Error(err),
			zap.String("event_type", event.Type),
			zap.String("user_id", event.UserID),
		)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Debug("event published",
		zap.String("event_type", event.Type),
		zap.String("user_id", event.UserID),
	)
	return nil
}

// Close flushes pending messages and closes the writer
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NopPublisher drops events. It is used when no brokers are configured.
type NopPublisher struct {
	logger *zap.Logger
}

// NewNopPublisher creates a new NopPublisher
func NewNopPublisher(logger *zap.Logger) *NopPublisher {
	return &NopPublisher{logger: logger}
}

// Publish logs the event type and discards it
func (p *NopPublisher) Publish(ctx context.Context, event model.DomainEvent) error {
	p.logger.Debug("event dropped, no broker configured", zap.String("event_type", event.Type))
	return nil
}
