package ports

import "context"

// EventPublisher emits an encoded event envelope. partitionKey orders events
// that share a namespace or run.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload []byte, partitionKey string) error
}
