package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"go.uber.org/zap"

	"github.com/fletera/fiscal-engine/internal/config"
	"github.com/fletera/fiscal-engine/internal/stamping"
)

// Publisher emits document lifecycle events to Kafka. A nil Publisher is
// valid and drops every event, so callers never branch on whether events are
// enabled.
type Publisher struct {
	producer *kafka.Producer
	topics   config.TopicsConfig
	logger   *zap.Logger
}

// NewPublisher creates the event publisher. Returns nil when events are
// disabled in configuration.
func NewPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	configMap := &kafka.ConfigMap{
		"bootstrap.servers": cfg.Brokers,
		"client.id":         "fiscal-engine-producer",
		"acks":              "all",
		"linger.ms":         10,
		"compression.type":  "snappy",
	}

	producer, err := kafka.NewProducer(configMap)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	publisher := &Publisher{
		producer: producer,
		topics:   cfg.Topics,
		logger:   logger.Named("event_publisher"),
	}

	// Drain delivery reports so the internal queue never backs up.
	go publisher.handleDeliveryReports()

	return publisher, nil
}

func (p *Publisher) handleDeliveryReports() {
	for e := range p.producer.Events() {
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			p.logger.Error("Event delivery failed",
				zap.Stringp("topic", m.TopicPartition.Topic),
				zap.Error(m.TopicPartition.Error))
		}
	}
}

// DocumentStamped emits the certification event for a document
func (p *Publisher) DocumentStamped(ctx context.Context, documentID string, proof *stamping.StampProof) error {
	if p == nil {
		return nil
	}
	event := map[string]interface{}{
		"event_type":  "document_stamped",
		"document_id": documentID,
		"uuid":        proof.UUID,
		"stamped_at":  proof.Timestamp.UTC().Format(time.RFC3339),
		"certificate": proof.CertificateUsed,
		"emitted_at":  time.Now().UTC().Format(time.RFC3339),
	}
	return p.publish(ctx, p.topics.DocumentStamped, documentID, event)
}

// DocumentRejected emits the rejection event for a document
func (p *Publisher) DocumentRejected(ctx context.Context, documentID string, stampErr *stamping.StampError) error {
	if p == nil {
		return nil
	}
	event := map[string]interface{}{
		"event_type":  "document_rejected",
		"document_id": documentID,
		"error_code":  stampErr.Code,
		"message":     stampErr.Message,
		"retryable":   stampErr.Retryable,
		"emitted_at":  time.Now().UTC().Format(time.RFC3339),
	}
	return p.publish(ctx, p.topics.DocumentRejected, documentID, event)
}

func (p *Publisher) publish(ctx context.Context, topic, key string, event map[string]interface{}) error {
	if p == nil {
		return nil
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	deliveryChan := make(chan kafka.Event, 1)
	err = p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:       []byte(key),
		Value:     value,
		Timestamp: time.Now(),
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
			{Key: "source-service", Value: []byte("fiscal-engine")},
		},
	}, deliveryChan)
	if err != nil {
		return fmt.Errorf("failed to produce event: %w", err)
	}

	select {
	case e := <-deliveryChan:
		if m, ok := e.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return fmt.Errorf("event delivery failed: %w", m.TopicPartition.Error)
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	p.logger.Debug("Event published",
		zap.String("topic", topic),
		zap.String("key", key))
	return nil
}

// Close flushes pending events and releases the producer
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	remaining := p.producer.Flush(5000)
	if remaining > 0 {
		p.logger.Warn("Events still queued at shutdown", zap.Int("count", remaining))
	}
	p.producer.Close()
}
