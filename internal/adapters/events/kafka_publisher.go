package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type KafkaConfig struct {
	Brokers []string
	// Topics maps an event type to its topic. Unmapped events are rejected.
	Topics       map[string]string
	ClientID     string
	WriteTimeout time.Duration
}

// KafkaPublisher writes cache events keyed by partition key, so every event
// for one namespace or run lands on the same partition.
type KafkaPublisher struct {
	writer  *kafka.Writer
	topics  map[string]string
	timeout time.Duration
}

func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if len(cfg.Topics) == 0 {
		return nil, fmt.Errorf("kafka publisher requires a topic map")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "creo-cache"
	}
	topics := make(map[string]string, len(cfg.Topics))
	for eventType, topic := range cfg.Topics {
		if topic != "" {
			topics[eventType] = topic
		}
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Transport:    &kafka.Transport{ClientID: cfg.ClientID},
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 50 * time.Millisecond,
			WriteTimeout: cfg.WriteTimeout,
		},
		topics:  topics,
		timeout: cfg.WriteTimeout,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	topic, ok := p.topics[eventType]
	if !ok {
		return fmt.Errorf("no kafka topic for event %q", eventType)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(partitionKey),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
			{Key: "content_type", Value: []byte("application/json")},
		},
		Time: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("publish %s to %s: %w", eventType, topic, err)
	}
	return nil
}

func (p *KafkaPublisher) Topic(eventType string) (string, bool) {
	topic, ok := p.topics[eventType]
	return topic, ok
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
