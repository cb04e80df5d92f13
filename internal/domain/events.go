package domain

const (
	EventCacheCleared       = "cache.cleared"
	EventCacheWarmCompleted = "cache.warm_completed"

	CanonicalEventClassOps = "ops"
)

func IsCanonicalEmittedEvent(eventType string) bool {
	switch eventType {
	case EventCacheCleared, EventCacheWarmCompleted:
		return true
	default:
		return false
	}
}

func CanonicalPartitionKeyPath(eventType string) string {
	switch eventType {
	case EventCacheCleared:
		return "data.namespace"
	case EventCacheWarmCompleted:
		return "data.run_id"
	default:
		return ""
	}
}
