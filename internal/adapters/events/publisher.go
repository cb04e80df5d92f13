package events

import (
	"context"
	"encoding/json"
	"log/slog"
)

// LoggingPublisher stands in for Kafka when no brokers are configured. It
// logs the envelope identity, never the payload body.
type LoggingPublisher struct {
	logger *slog.Logger
}

func NewLoggingPublisher(logger *slog.Logger) *LoggingPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingPublisher{logger: logger}
}

func (p *LoggingPublisher) Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error {
	var head struct {
		EventID       string `json:"event_id"`
		SchemaVersion string `json:"schema_version"`
	}
	_ = json.Unmarshal(payload, &head)
	p.logger.InfoContext(ctx, "cache event",
		"module", "events.publisher",
		"layer", "adapter",
		"operation", "publish",
		"outcome", "logged",
		"event_type", eventType,
		"event_id", head.EventID,
		"schema_version", head.SchemaVersion,
		"partition_key", partitionKey,
		"payload_bytes", len(payload),
	)
	return nil
}
