package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryBackendExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryBackend(WithClock(clock.Now))
	defer m.Close()
	ctx := context.Background()

	if err := m.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, found, _ := m.Get(ctx, "short"); !found {
		t.Fatalf("expected live entry before ttl")
	}

	clock.Advance(time.Second)
	if _, found, err := m.Get(ctx, "short"); err != nil || found {
		t.Fatalf("expected expired entry to be absent, found=%v err=%v", found, err)
	}
	clock.Advance(24 * time.Hour)
	if _, found, _ := m.Get(ctx, "forever"); !found {
		t.Fatalf("zero ttl entry must not expire")
	}

	stats, err := m.Stats(ctx, "")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalKeys != 1 {
		t.Fatalf("expected 1 live key, got %d", stats.TotalKeys)
	}
}

func TestMemoryBackendIncrAndMGet(t *testing.T) {
	m := NewMemoryBackend()
	defer m.Close()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := m.Incr(ctx, "n"); err != nil {
			t.Fatalf("incr: %v", err)
		}
	}
	vals, err := m.MGet(ctx, "n", "missing")
	if err != nil {
		t.Fatalf("mget: %v", err)
	}
	if string(vals[0]) != "3" || vals[1] != nil {
		t.Fatalf("unexpected mget result: %q", vals)
	}

	_ = m.Set(ctx, "text", []byte("abc"), 0)
	if _, err := m.Incr(ctx, "text"); err == nil {
		t.Fatalf("expected incr on non-integer to fail")
	}
}

func TestMemoryBackendConcurrentIncr(t *testing.T) {
	m := NewMemoryBackend()
	defer m.Close()
	ctx := context.Background()

	const n = 200
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Incr(ctx, "c")
		}()
	}
	wg.Wait()
	vals, _ := m.MGet(ctx, "c")
	if string(vals[0]) != "200" {
		t.Fatalf("expected 200 increments, got %s", vals[0])
	}
}

func TestMemoryBackendClearPrefix(t *testing.T) {
	m := NewMemoryBackend()
	defer m.Close()
	ctx := context.Background()
	_ = m.Set(ctx, "a:1", []byte("x"), 0)
	_ = m.Set(ctx, "a:2", []byte("x"), 0)
	_ = m.Set(ctx, "b:1", []byte("x"), 0)

	if err := m.Clear(ctx, "a:"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	stats, _ := m.Stats(ctx, "")
	if stats.TotalKeys != 1 {
		t.Fatalf("expected only b:1 to remain, got %d keys", stats.TotalKeys)
	}
	if err := m.Clear(ctx, ""); err != nil {
		t.Fatalf("clear all: %v", err)
	}
	stats, _ = m.Stats(ctx, "")
	if stats.TotalKeys != 0 || stats.MemoryUsageBytes != 0 {
		t.Fatalf("expected empty backend, got %+v", stats)
	}
}

func TestMemoryBackendClosedAndCancelled(t *testing.T) {
	m := NewMemoryBackend(WithCleanupInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := m.Ping(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	_ = m.Close()
	if err := m.Ping(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestMemoryBackendJanitorSweeps(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	m := NewMemoryBackend(WithClock(clock.Now), WithCleanupInterval(5*time.Millisecond))
	defer m.Close()
	_ = m.Set(context.Background(), "k", []byte("v"), time.Second)
	clock.Advance(2 * time.Second)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		m.mu.RLock()
		n := len(m.items)
		m.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("janitor did not remove expired entry")
}
