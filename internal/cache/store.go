// Package cache is the shared key/value cache core: a namespaced Store over a
// Backend port, with hit/miss tracking on the read path and a health probe.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/psdstocks-cloud/creo-cache/internal/ports"
)

const maxKeyLength = 512

type Config struct {
	// Namespace is prepended to every key, counters included.
	Namespace string
	// OpTimeout bounds each backend call. Exceeding it is reported as ErrBackendTimeout.
	OpTimeout time.Duration
	// HealthThreshold separates healthy from degraded probe latency.
	HealthThreshold time.Duration
}

type Store struct {
	backend ports.Backend
	tracker *Tracker
	cfg     Config
	logger  *slog.Logger
}

func NewStore(backend ports.Backend, cfg Config, logger *slog.Logger) *Store {
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 2 * time.Second
	}
	if cfg.HealthThreshold <= 0 {
		cfg.HealthThreshold = 100 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend: backend,
		tracker: NewTracker(backend, cfg.Namespace, cfg.OpTimeout),
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *Store) Tracker() *Tracker { return s.tracker }

func (s *Store) Namespace() string { return s.cfg.Namespace }

// Get returns the live value for key. A missing or expired key is found=false
// with a nil error and counts as a miss; backend failures count as neither.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	value, found, err := s.backend.Get(opCtx, s.nsKey(key))
	if err != nil {
		return nil, false, classify("get", key, err)
	}
	if recErr := s.tracker.Record(ctx, found); recErr != nil {
		s.logger.WarnContext(ctx, "cache counter update failed",
			"module", "cache.store",
			"layer", "core",
			"operation", "record_access",
			"outcome", "failure",
			"hit", found,
			"error", recErr,
		)
	}
	return value, found, nil
}

// Set stores value under key. A zero ttl never expires; a negative ttl is rejected.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if ttl < 0 {
		return fmt.Errorf("negative ttl %s: %w", ttl, domain.ErrInvalidInput)
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	return classify("set", key, s.backend.Set(opCtx, s.nsKey(key), value, ttl))
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	return classify("delete", key, s.backend.Delete(opCtx, s.nsKey(key)))
}

// Clear removes every entry in the namespace, hit/miss counters included.
// It invalidates the working set for every consumer of the backend.
func (s *Store) Clear(ctx context.Context) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	return classify("clear", s.cfg.Namespace+"*", s.backend.Clear(opCtx, s.cfg.Namespace))
}

// Health probes the backend with a ping. It never returns an error: failures
// become an unhealthy status with latency 0.
func (s *Store) Health(ctx context.Context) (status domain.HealthStatus) {
	defer func() {
		if r := recover(); r != nil {
			status = domain.HealthStatus{Status: domain.HealthUnhealthy, Error: fmt.Sprintf("health probe panic: %v", r)}
		}
	}()
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	start := time.Now()
	err := s.backend.Ping(opCtx)
	elapsed := time.Since(start)
	if err != nil {
		return domain.HealthStatus{Status: domain.HealthUnhealthy, LatencyMS: 0, Error: classify("ping", "", err).Error()}
	}
	status = domain.HealthStatus{Status: domain.HealthHealthy, LatencyMS: elapsed.Milliseconds()}
	if elapsed > s.cfg.HealthThreshold {
		status.Status = domain.HealthDegraded
	}
	return status
}

// Stats is the backend size snapshot. On Redis with a namespace this is an
// O(n) SCAN; keep it off request hot paths.
func (s *Store) Stats(ctx context.Context) (domain.BackendStats, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	stats, err := s.backend.Stats(opCtx, s.cfg.Namespace)
	if err != nil {
		return domain.BackendStats{}, classify("stats", "", err)
	}
	return stats, nil
}

// Statistics merges the size snapshot with the hit/miss counters. TotalKeys
// includes the two counter keys once they exist.
func (s *Store) Statistics(ctx context.Context) (domain.CacheStatistics, error) {
	size, err := s.Stats(ctx)
	if err != nil {
		return domain.CacheStatistics{}, err
	}
	hits, misses, err := s.tracker.Counters(ctx)
	if err != nil {
		return domain.CacheStatistics{}, err
	}
	rates := domain.ComputeRates(hits, misses)
	return domain.CacheStatistics{
		TotalKeys:        size.TotalKeys,
		MemoryUsageBytes: size.MemoryUsageBytes,
		Hits:             hits,
		Misses:           misses,
		HitRate:          rates.HitRate,
		MissRate:         rates.MissRate,
	}, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

// GetJSON reads key and decodes it into T.
func GetJSON[T any](ctx context.Context, s *Store, key string) (T, bool, error) {
	var out T
	raw, found, err := s.Get(ctx, key)
	if err != nil || !found {
		return out, found, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, false, fmt.Errorf("decode cached %q: %w", key, err)
	}
	return out, true, nil
}

func SetJSON(ctx context.Context, s *Store, key string, value any, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %q: %w: %w", key, domain.ErrInvalidInput, err)
	}
	return s.Set(ctx, key, raw, ttl)
}

func (s *Store) nsKey(key string) string {
	return s.cfg.Namespace + key
}

func (s *Store) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.cfg.OpTimeout)
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || len(key) > maxKeyLength {
		return fmt.Errorf("cache key %q: %w", key, domain.ErrInvalidInput)
	}
	return nil
}

// classify maps a raw backend error onto the cache error taxonomy.
func classify(op, key string, err error) error {
	if err == nil {
		return nil
	}
	target := op
	if key != "" {
		target = fmt.Sprintf("%s %q", op, key)
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || isNetTimeout(err):
		return fmt.Errorf("cache %s: %w: %w", target, domain.ErrBackendTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("cache %s: %w: %w", target, domain.ErrCancelled, err)
	default:
		return fmt.Errorf("cache %s: %w: %w", target, domain.ErrBackendUnreachable, err)
	}
}

func isNetTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
