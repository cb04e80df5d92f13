package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	cacheadapter "github.com/psdstocks-cloud/creo-cache/internal/adapters/cache"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/psdstocks-cloud/creo-cache/internal/ports"
)

// slowBackend delays Get and Ping until the delay passes or ctx ends.
type slowBackend struct {
	ports.Backend
	delay time.Duration
}

func (b *slowBackend) wait(ctx context.Context) error {
	select {
	case <-time.After(b.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (b *slowBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := b.wait(ctx); err != nil {
		return nil, false, err
	}
	return b.Backend.Get(ctx, key)
}

func (b *slowBackend) Ping(ctx context.Context) error {
	if err := b.wait(ctx); err != nil {
		return err
	}
	return b.Backend.Ping(ctx)
}

type failingBackend struct {
	ports.Backend
	err error
}

func (b *failingBackend) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b *failingBackend) Ping(context.Context) error { return b.err }

type panickingBackend struct{ ports.Backend }

func (panickingBackend) Ping(context.Context) error { panic("boom") }

func newTestStore(t *testing.T, cfg Config, opts ...cacheadapter.MemoryOption) (*Store, *cacheadapter.MemoryBackend) {
	t.Helper()
	backend := cacheadapter.NewMemoryBackend(opts...)
	t.Cleanup(func() { _ = backend.Close() })
	return NewStore(backend, cfg, nil), backend
}

func TestStoreRoundTripAndCounters(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	if err := store.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, found, err := store.Get(ctx, "k1")
	if err != nil || !found || string(val) != "v1" {
		t.Fatalf("expected hit with v1, got found=%v val=%q err=%v", found, val, err)
	}
	if _, found, err := store.Get(ctx, "missing"); err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %+v", stats)
	}
	if stats.HitRate != 0.5 || stats.MissRate != 0.5 {
		t.Fatalf("unexpected rates: %+v", stats)
	}
	// k1 plus both counters
	if stats.TotalKeys != 3 {
		t.Fatalf("expected 3 keys, got %d", stats.TotalKeys)
	}
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()
	_ = store.Set(ctx, "k", []byte("v"), 0)
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "k"); err != nil {
		t.Fatalf("delete absent key: %v", err)
	}
	if _, found, _ := store.Get(ctx, "k"); found {
		t.Fatalf("expected deleted key to miss")
	}
}

func TestStoreTTLExpiry(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	var mu sync.Mutex
	clock := func() time.Time { mu.Lock(); defer mu.Unlock(); return now }
	store, _ := newTestStore(t, Config{}, cacheadapter.WithClock(clock))
	ctx := context.Background()

	if err := store.Set(ctx, "ttl", []byte("v"), 10*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	mu.Lock()
	now = now.Add(9 * time.Second)
	mu.Unlock()
	if _, found, _ := store.Get(ctx, "ttl"); !found {
		t.Fatalf("expected hit before expiry")
	}
	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	if _, found, err := store.Get(ctx, "ttl"); err != nil || found {
		t.Fatalf("expected miss at expiry, found=%v err=%v", found, err)
	}
}

func TestStoreRejectsInvalidInput(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()

	if _, _, err := store.Get(ctx, ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for empty key, got %v", err)
	}
	if err := store.Set(ctx, strings.Repeat("k", maxKeyLength+1), []byte("v"), 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for long key, got %v", err)
	}
	if err := store.Set(ctx, "k", []byte("v"), -time.Second); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for negative ttl, got %v", err)
	}
}

func TestStoreNamespaceIsolation(t *testing.T) {
	backend := cacheadapter.NewMemoryBackend()
	defer backend.Close()
	a := NewStore(backend, Config{Namespace: "a:"}, nil)
	b := NewStore(backend, Config{Namespace: "b:"}, nil)
	ctx := context.Background()

	_ = a.Set(ctx, "k", []byte("from-a"), 0)
	if _, found, _ := b.Get(ctx, "k"); found {
		t.Fatalf("namespace b must not see a's key")
	}
	_ = b.Set(ctx, "k", []byte("from-b"), 0)
	if err := a.Clear(ctx); err != nil {
		t.Fatalf("clear a: %v", err)
	}
	if val, found, _ := b.Get(ctx, "k"); !found || string(val) != "from-b" {
		t.Fatalf("clearing a must keep b's key, got found=%v val=%q", found, val)
	}
}

func TestStoreClearResetsStatistics(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()
	_ = store.Set(ctx, "k", []byte("v"), 0)
	_, _, _ = store.Get(ctx, "k")
	_, _, _ = store.Get(ctx, "nope")

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.TotalKeys != 0 || stats.Hits != 0 || stats.Misses != 0 || stats.HitRate != 0 || stats.MissRate != 0 {
		t.Fatalf("expected zeroed statistics after clear, got %+v", stats)
	}
}

func TestStoreConcurrentReadsAreAllCounted(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()
	_ = store.Set(ctx, "hot", []byte("v"), 0)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := "hot"
			if i%2 == 1 {
				key = "cold"
			}
			if _, _, err := store.Get(ctx, key); err != nil {
				t.Errorf("get: %v", err)
			}
		}(i)
	}
	wg.Wait()

	stats, err := store.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if stats.Hits+stats.Misses != n {
		t.Fatalf("expected %d counted reads, got hits=%d misses=%d", n, stats.Hits, stats.Misses)
	}
	if stats.Hits != n/2 {
		t.Fatalf("expected %d hits, got %d", n/2, stats.Hits)
	}
}

func TestStoreBackendFailureCountsNeither(t *testing.T) {
	mem := cacheadapter.NewMemoryBackend()
	defer mem.Close()
	store := NewStore(&failingBackend{Backend: mem, err: errors.New("connection refused")}, Config{}, nil)
	ctx := context.Background()

	_, _, err := store.Get(ctx, "k")
	if !errors.Is(err, domain.ErrBackendUnreachable) {
		t.Fatalf("expected ErrBackendUnreachable, got %v", err)
	}
	hits, misses, err := store.Tracker().Counters(ctx)
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if hits != 0 || misses != 0 {
		t.Fatalf("failed read must not be counted, hits=%d misses=%d", hits, misses)
	}
}

func TestStoreGetTimeout(t *testing.T) {
	mem := cacheadapter.NewMemoryBackend()
	defer mem.Close()
	store := NewStore(&slowBackend{Backend: mem, delay: time.Second}, Config{OpTimeout: 20 * time.Millisecond}, nil)

	start := time.Now()
	_, _, err := store.Get(context.Background(), "k")
	if !errors.Is(err, domain.ErrBackendTimeout) {
		t.Fatalf("expected ErrBackendTimeout, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Fatalf("timeout not enforced, took %s", time.Since(start))
	}
}

func TestStoreCallerCancellation(t *testing.T) {
	mem := cacheadapter.NewMemoryBackend()
	defer mem.Close()
	store := NewStore(&slowBackend{Backend: mem, delay: time.Second}, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestStoreHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		store, _ := newTestStore(t, Config{HealthThreshold: time.Second})
		h := store.Health(context.Background())
		if h.Status != domain.HealthHealthy || h.Error != "" {
			t.Fatalf("expected healthy, got %+v", h)
		}
	})

	t.Run("degraded", func(t *testing.T) {
		mem := cacheadapter.NewMemoryBackend()
		defer mem.Close()
		store := NewStore(&slowBackend{Backend: mem, delay: 30 * time.Millisecond}, Config{HealthThreshold: 5 * time.Millisecond}, nil)
		h := store.Health(context.Background())
		if h.Status != domain.HealthDegraded {
			t.Fatalf("expected degraded, got %+v", h)
		}
		if h.LatencyMS < 30 {
			t.Fatalf("expected latency >= 30ms, got %d", h.LatencyMS)
		}
	})

	t.Run("unhealthy", func(t *testing.T) {
		mem := cacheadapter.NewMemoryBackend()
		defer mem.Close()
		store := NewStore(&failingBackend{Backend: mem, err: errors.New("dial tcp: connection refused")}, Config{}, nil)
		h := store.Health(context.Background())
		if h.Status != domain.HealthUnhealthy || h.LatencyMS != 0 || h.Error == "" {
			t.Fatalf("expected unhealthy with reason and zero latency, got %+v", h)
		}
	})

	t.Run("closed backend", func(t *testing.T) {
		store, backend := newTestStore(t, Config{})
		_ = backend.Close()
		if h := store.Health(context.Background()); h.Status != domain.HealthUnhealthy {
			t.Fatalf("expected unhealthy after close, got %+v", h)
		}
	})

	t.Run("panic", func(t *testing.T) {
		mem := cacheadapter.NewMemoryBackend()
		defer mem.Close()
		store := NewStore(panickingBackend{Backend: mem}, Config{}, nil)
		h := store.Health(context.Background())
		if h.Status != domain.HealthUnhealthy || !strings.Contains(h.Error, "boom") {
			t.Fatalf("expected unhealthy from panic, got %+v", h)
		}
	})
}

func TestStoreJSONHelpers(t *testing.T) {
	store, _ := newTestStore(t, Config{})
	ctx := context.Background()
	type site struct {
		Name string `json:"name"`
		Live bool   `json:"live"`
	}
	if err := SetJSON(ctx, store, "site", site{Name: "shutterstock", Live: true}, time.Minute); err != nil {
		t.Fatalf("set json: %v", err)
	}
	got, found, err := GetJSON[site](ctx, store, "site")
	if err != nil || !found {
		t.Fatalf("get json: found=%v err=%v", found, err)
	}
	if got.Name != "shutterstock" || !got.Live {
		t.Fatalf("unexpected decoded value: %+v", got)
	}
	if err := SetJSON(ctx, store, "bad", make(chan int), 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for unencodable value, got %v", err)
	}
}
