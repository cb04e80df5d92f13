package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

// ErrClosed is returned by every MemoryBackend call after Close.
var ErrClosed = errors.New("memory backend closed")

type memoryItem struct {
	value      []byte
	expiration int64 // UnixNano, 0 means no expiry
}

func (i memoryItem) expired(now int64) bool {
	return i.expiration != 0 && now >= i.expiration
}

// MemoryBackend is a process-local backend. Expiry is checked on every read and,
// when a cleanup interval is configured, swept by a background janitor.
type MemoryBackend struct {
	mu       sync.RWMutex
	items    map[string]memoryItem
	closed   bool
	interval time.Duration
	nowFn    func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

type MemoryOption func(*MemoryBackend)

// WithCleanupInterval enables the janitor. d <= 0 leaves expiry lazy only.
func WithCleanupInterval(d time.Duration) MemoryOption {
	return func(m *MemoryBackend) { m.interval = d }
}

// WithClock replaces time.Now, mainly for expiry tests.
func WithClock(nowFn func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		if nowFn != nil {
			m.nowFn = nowFn
		}
	}
}

func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		items:  make(map[string]memoryItem),
		nowFn:  time.Now,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.startJanitor()
	return m
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return nil, false, ErrClosed
	}
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if item.expired(m.nowFn().UnixNano()) {
		m.mu.Lock()
		// re-check under the write lock, a concurrent Set may have replaced it
		if cur, still := m.items[key]; still && cur.expired(m.nowFn().UnixNano()) {
			delete(m.items, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return append([]byte(nil), item.value...), true, nil
}

func (m *MemoryBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var exp int64
	if ttl > 0 {
		exp = m.nowFn().Add(ttl).UnixNano()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.items[key] = memoryItem{value: append([]byte(nil), value...), expiration: exp}
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.items, key)
	return nil
}

func (m *MemoryBackend) Incr(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	item, ok := m.items[key]
	var n int64
	if ok && !item.expired(m.nowFn().UnixNano()) {
		parsed, err := strconv.ParseInt(string(item.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("incr %s: value is not an integer", key)
		}
		n = parsed
	} else {
		item = memoryItem{}
	}
	n++
	item.value = []byte(strconv.FormatInt(n, 10))
	m.items[key] = item
	return n, nil
}

func (m *MemoryBackend) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	now := m.nowFn().UnixNano()
	out := make([][]byte, len(keys))
	for i, key := range keys {
		if item, ok := m.items[key]; ok && !item.expired(now) {
			out[i] = append([]byte(nil), item.value...)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Clear(ctx context.Context, prefix string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if prefix == "" {
		m.items = make(map[string]memoryItem)
		return nil
	}
	for key := range m.items {
		if strings.HasPrefix(key, prefix) {
			delete(m.items, key)
		}
	}
	return nil
}

func (m *MemoryBackend) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Stats walks the map, so it is O(n) in the number of entries.
func (m *MemoryBackend) Stats(ctx context.Context, prefix string) (domain.BackendStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.BackendStats{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return domain.BackendStats{}, ErrClosed
	}
	now := m.nowFn().UnixNano()
	var stats domain.BackendStats
	for key, item := range m.items {
		if !strings.HasPrefix(key, prefix) || item.expired(now) {
			continue
		}
		stats.TotalKeys++
		stats.MemoryUsageBytes += int64(len(key) + len(item.value))
	}
	return stats, nil
}

// Close stops the janitor. Later calls fail with ErrClosed.
func (m *MemoryBackend) Close() error {
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.items = make(map[string]memoryItem)
	return nil
}

func (m *MemoryBackend) startJanitor() {
	if m.interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.deleteExpired()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *MemoryBackend) deleteExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.nowFn().UnixNano()
	for key, item := range m.items {
		if item.expired(now) {
			delete(m.items, key)
		}
	}
}
