package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type CacheClearedPayload struct {
	Namespace string `json:"namespace"`
	ClearedAt string `json:"cleared_at"`
	RequestID string `json:"request_id,omitempty"`
}

type CacheWarmCompletedPayload struct {
	RunID      string   `json:"run_id"`
	Trigger    string   `json:"trigger"`
	Succeeded  []string `json:"succeeded"`
	Failed     []string `json:"failed"`
	Cancelled  bool     `json:"cancelled"`
	DurationMS int64    `json:"duration_ms"`
	FinishedAt string   `json:"finished_at"`
}
