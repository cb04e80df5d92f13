package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/psdstocks-cloud/creo-cache/internal/ports"
)

// Tracker keeps hit/miss counters as ordinary backend keys, so every process
// sharing the backend reports the same totals. Increments rely on the
// backend's atomic INCR.
type Tracker struct {
	backend   ports.Backend
	hitsKey   string
	missesKey string
	timeout   time.Duration
}

func NewTracker(backend ports.Backend, namespace string, timeout time.Duration) *Tracker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Tracker{
		backend:   backend,
		hitsKey:   namespace + domain.HitsCounterKey,
		missesKey: namespace + domain.MissesCounterKey,
		timeout:   timeout,
	}
}

// Record counts one served read. It is detached from the caller's
// cancellation so a read that was answered is always counted.
func (t *Tracker) Record(ctx context.Context, hit bool) error {
	key := t.missesKey
	if hit {
		key = t.hitsKey
	}
	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.timeout)
	defer cancel()
	if _, err := t.backend.Incr(opCtx, key); err != nil {
		return classify("incr", key, err)
	}
	return nil
}

// Counters reads both counters in a single round trip so hits+misses is a
// consistent total.
func (t *Tracker) Counters(ctx context.Context) (hits, misses int64, err error) {
	opCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	vals, err := t.backend.MGet(opCtx, t.hitsKey, t.missesKey)
	if err != nil {
		return 0, 0, classify("mget", t.hitsKey, err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("cache counters: expected 2 values, got %d: %w", len(vals), domain.ErrBackendUnreachable)
	}
	if hits, err = parseCounter(vals[0]); err != nil {
		return 0, 0, err
	}
	if misses, err = parseCounter(vals[1]); err != nil {
		return 0, 0, err
	}
	return hits, misses, nil
}

func parseCounter(raw []byte) (int64, error) {
	if raw == nil {
		return 0, nil
	}
	n, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse counter %q: %w", raw, err)
	}
	return n, nil
}
