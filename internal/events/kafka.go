package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaPublisher writes events as JSON to a Kafka topic keyed by browser id
type KafkaPublisher struct {
	producer *kafka.Producer
	config   *Config
	logger   *slog.Logger
}

// producerConfig is the librdkafka configuration for the audit producer
func (c *Config) producerConfig() *kafka.ConfigMap {
	return &kafka.ConfigMap{
		"bootstrap.servers":                     strings.Join(c.GetBrokersList(), ","),
		"enable.idempotence":                    c.EnableIdempotence,
		"acks":                                  c.Acks,
		"max.in.flight.requests.per.connection": 5,
	}
}

// NewKafkaPublisher creates a producer with idempotence enabled
func NewKafkaPublisher(config *Config, logger *slog.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(config.producerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	publisher := &KafkaPublisher{
		producer: p,
		config:   config,
		logger:   logger,
	}

	go publisher.handleDeliveryReports()

	logger.Info("Kafka publisher initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
	)

	return publisher, nil
}

// Publish enqueues e without waiting for delivery
func (p *KafkaPublisher) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &p.config.Topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(e.BrowserID),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
		},
	}

	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.Debug("Auth event published",
		"topic", p.config.Topic,
		"type", e.Type,
	)
	return nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	for e := range p.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			p.logger.Error("Auth event delivery failed",
				"topic", *ev.TopicPartition.Topic,
				"error", ev.TopicPartition.Error,
			)
		}
	}
}

// Close flushes pending events (10s) and closes the producer
func (p *KafkaPublisher) Close() {
	if remaining := p.producer.Flush(10000); remaining > 0 {
		p.logger.Error("Some auth events were not delivered", "count", remaining)
	}
	p.producer.Close()
	p.logger.Info("Kafka publisher closed")
}
