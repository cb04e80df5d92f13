package domain

import "time"

// Counter keys live inside the cache namespace next to ordinary entries.
const (
	HitsCounterKey   = "cache:hits"
	MissesCounterKey = "cache:misses"
)

type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

type CacheEntry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
}

// Expired reports whether the entry is past its expiry at now. A zero ExpiresAt never expires.
func (e CacheEntry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

type HealthStatus struct {
	Status    HealthState `json:"status"`
	LatencyMS int64       `json:"latencyMs"`
	Error     string      `json:"error,omitempty"`
}

// BackendStats is the size snapshot reported by a backend.
type BackendStats struct {
	TotalKeys        int64
	MemoryUsageBytes int64
}

type CacheStatistics struct {
	TotalKeys        int64   `json:"totalKeys"`
	MemoryUsageBytes int64   `json:"memoryUsageBytes"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hitRate"`
	MissRate         float64 `json:"missRate"`
}

type EdgeStatistics struct {
	HitRate       float64 `json:"hitRate"`
	TotalRequests int64   `json:"totalRequests"`
}

// CombinedStatistics is the stats surface: local counters merged with edge numbers.
// CDN fields are zero when the edge provider could not be queried.
type CombinedStatistics struct {
	TotalKeys        int64   `json:"totalKeys"`
	MemoryUsageBytes int64   `json:"memoryUsageBytes"`
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	HitRate          float64 `json:"hitRate"`
	MissRate         float64 `json:"missRate"`
	TotalRequests    int64   `json:"totalRequests"`
	CDNHitRate       float64 `json:"cdnHitRate"`
	CDNTotalRequests int64   `json:"cdnTotalRequests"`
}

type Rates struct {
	HitRate  float64
	MissRate float64
}

// ComputeRates returns hits/(hits+misses) and its complement. Both are 0 with no requests.
func ComputeRates(hits, misses int64) Rates {
	if hits < 0 {
		hits = 0
	}
	if misses < 0 {
		misses = 0
	}
	total := hits + misses
	if total == 0 {
		return Rates{}
	}
	hitRate := float64(hits) / float64(total)
	return Rates{HitRate: hitRate, MissRate: 1 - hitRate}
}
