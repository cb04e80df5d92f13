package warmer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

type mapSetter struct {
	mu   sync.Mutex
	data map[string]string
}

func newMapSetter() *mapSetter { return &mapSetter{data: map[string]string{}} }

func (s *mapSetter) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = string(value)
	return nil
}

func (s *mapSetter) get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

func constFetch(v string) FetchFunc {
	return func(context.Context) ([]byte, error) { return []byte(v), nil }
}

func mustRegister(t *testing.T, w *Warmer, job Job) {
	t.Helper()
	if err := w.Register(job); err != nil {
		t.Fatalf("register %s: %v", job.Name, err)
	}
}

func TestWarmAllIsolatesFailedJobs(t *testing.T) {
	store := newMapSetter()
	w := New(Config{}, nil)
	mustRegister(t, w, StoreJob("sites", "stock:sites", time.Hour, store, constFetch(`["a"]`)))
	mustRegister(t, w, StoreJob("broken", "stock:broken", time.Hour, store, func(context.Context) ([]byte, error) {
		return nil, errors.New("upstream 502")
	}))
	mustRegister(t, w, StoreJob("categories", "stock:categories", time.Hour, store, constFetch(`["c"]`)))

	for run := 0; run < 2; run++ {
		report, err := w.WarmAll(context.Background(), domain.TriggerManual)
		if err != nil {
			t.Fatalf("warm all: %v", err)
		}
		if strings.Join(report.Succeeded, ",") != "sites,categories" {
			t.Fatalf("unexpected succeeded list: %v", report.Succeeded)
		}
		if len(report.Failed) != 1 || report.Failed[0].Name != "broken" || report.Failed[0].Kind != domain.FailureJob {
			t.Fatalf("unexpected failures: %+v", report.Failed)
		}
		if !strings.Contains(report.Failed[0].Reason, "upstream 502") {
			t.Fatalf("failure reason lost: %q", report.Failed[0].Reason)
		}
		if report.Cancelled || report.RunID == "" || report.Trigger != domain.TriggerManual {
			t.Fatalf("unexpected report header: %+v", report)
		}
	}
	if v, ok := store.get("stock:sites"); !ok || v != `["a"]` {
		t.Fatalf("expected stock:sites to be warmed, got %q", v)
	}
	if _, ok := store.get("stock:categories"); !ok {
		t.Fatalf("expected stock:categories to be warmed")
	}
	if _, ok := store.get("stock:broken"); ok {
		t.Fatalf("failed job must not write its key")
	}
}

func TestWarmAllBoundsConcurrency(t *testing.T) {
	const limit = 3
	w := New(Config{Concurrency: limit}, nil)
	var current, peak int32
	for i := 0; i < 12; i++ {
		mustRegister(t, w, Job{Name: fmt.Sprintf("job-%d", i), Run: func(context.Context) error {
			n := atomic.AddInt32(&current, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(15 * time.Millisecond)
			atomic.AddInt32(&current, -1)
			return nil
		}})
	}

	report, err := w.WarmAll(context.Background(), "")
	if err != nil {
		t.Fatalf("warm all: %v", err)
	}
	if len(report.Succeeded) != 12 {
		t.Fatalf("expected 12 successes, got %d", len(report.Succeeded))
	}
	if peak > limit {
		t.Fatalf("concurrency limit exceeded: peak=%d limit=%d", peak, limit)
	}
	if peak < 2 {
		t.Fatalf("expected jobs to overlap, peak=%d", peak)
	}
}

func TestWarmAllKeepsRegistrationOrder(t *testing.T) {
	w := New(Config{Concurrency: 4}, nil)
	names := []string{"slow", "medium", "fast"}
	delays := []time.Duration{40 * time.Millisecond, 20 * time.Millisecond, 0}
	for i := range names {
		d := delays[i]
		mustRegister(t, w, Job{Name: names[i], Run: func(context.Context) error {
			time.Sleep(d)
			return nil
		}})
	}
	report, err := w.WarmAll(context.Background(), "")
	if err != nil {
		t.Fatalf("warm all: %v", err)
	}
	if strings.Join(report.Succeeded, ",") != "slow,medium,fast" {
		t.Fatalf("expected registration order, got %v", report.Succeeded)
	}
}

func TestWarmAllCancellationLetsInFlightFinish(t *testing.T) {
	w := New(Config{Concurrency: 1}, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var firstCtxErr error
	mustRegister(t, w, Job{Name: "in-flight", Run: func(ctx context.Context) error {
		close(started)
		<-release
		firstCtxErr = ctx.Err()
		return nil
	}})
	mustRegister(t, w, Job{Name: "queued-1", Run: func(context.Context) error { return nil }})
	mustRegister(t, w, Job{Name: "queued-2", Run: func(context.Context) error { return nil }})

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		report domain.WarmReport
		err    error
	}
	done := make(chan result, 1)
	go func() {
		report, err := w.WarmAll(ctx, domain.TriggerManual)
		done <- result{report, err}
	}()

	<-started
	cancel()
	time.Sleep(10 * time.Millisecond)
	close(release)

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("warm all did not return after cancellation")
	}
	if !errors.Is(res.err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", res.err)
	}
	if !res.report.Cancelled {
		t.Fatalf("expected cancelled report")
	}
	if len(res.report.Succeeded) != 1 || res.report.Succeeded[0] != "in-flight" {
		t.Fatalf("in-flight job should finish, got %v", res.report.Succeeded)
	}
	if firstCtxErr != nil {
		t.Fatalf("in-flight job context must not see caller cancellation, got %v", firstCtxErr)
	}
	if len(res.report.Failed) != 2 {
		t.Fatalf("expected 2 un-started jobs, got %+v", res.report.Failed)
	}
	for _, f := range res.report.Failed {
		if f.Kind != domain.FailureCancelled || !strings.Contains(f.Reason, "cancelled") {
			t.Fatalf("unexpected failure for un-started job: %+v", f)
		}
	}
}

func TestWarmAllCancelledBeforeStart(t *testing.T) {
	w := New(Config{}, nil)
	var ran int32
	mustRegister(t, w, Job{Name: "a", Run: func(context.Context) error { atomic.AddInt32(&ran, 1); return nil }})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := w.WarmAll(ctx, "")
	if !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatalf("no job may start after cancellation")
	}
	if report.Total() != 1 || report.Failed[0].Kind != domain.FailureCancelled {
		t.Fatalf("job must be reported as cancelled: %+v", report)
	}
}

func TestWarmAllDeadlineAbandonsStuckJobs(t *testing.T) {
	w := New(Config{Concurrency: 1, Deadline: 50 * time.Millisecond}, nil)
	stuck := make(chan struct{})
	t.Cleanup(func() { close(stuck) })
	mustRegister(t, w, Job{Name: "stuck", Run: func(context.Context) error {
		<-stuck
		return nil
	}})
	mustRegister(t, w, Job{Name: "queued", Run: func(context.Context) error { return nil }})

	start := time.Now()
	report, err := w.WarmAll(context.Background(), "")
	if err != nil {
		t.Fatalf("deadline is not an error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("deadline not enforced, took %s", elapsed)
	}
	if len(report.Succeeded) != 0 || len(report.Failed) != 2 {
		t.Fatalf("expected both jobs failed, got %+v", report)
	}
	for _, f := range report.Failed {
		if f.Kind != domain.FailureTimeout {
			t.Fatalf("expected timeout failure, got %+v", f)
		}
	}
	if report.Cancelled {
		t.Fatalf("deadline must not mark the run cancelled")
	}
}

func TestWarmAllJobObservingDeadline(t *testing.T) {
	w := New(Config{Deadline: 30 * time.Millisecond}, nil)
	mustRegister(t, w, Job{Name: "polite", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	report, _ := w.WarmAll(context.Background(), "")
	if len(report.Failed) != 1 || report.Failed[0].Kind != domain.FailureTimeout {
		t.Fatalf("expected timeout, got %+v", report.Failed)
	}
}

func TestWarmAllRecoversPanics(t *testing.T) {
	w := New(Config{}, nil)
	mustRegister(t, w, Job{Name: "panics", Run: func(context.Context) error { panic("nil map write") }})
	mustRegister(t, w, Job{Name: "fine", Run: func(context.Context) error { return nil }})

	report, err := w.WarmAll(context.Background(), "")
	if err != nil {
		t.Fatalf("warm all: %v", err)
	}
	if len(report.Succeeded) != 1 || report.Succeeded[0] != "fine" {
		t.Fatalf("expected fine to succeed, got %v", report.Succeeded)
	}
	if len(report.Failed) != 1 || !strings.Contains(report.Failed[0].Reason, "panic") {
		t.Fatalf("expected panic failure, got %+v", report.Failed)
	}
}

func TestWarmAllEmptyRegistry(t *testing.T) {
	report, err := New(Config{}, nil).WarmAll(context.Background(), "")
	if err != nil || report.Total() != 0 {
		t.Fatalf("expected empty report, got %+v err=%v", report, err)
	}
	if _, err := New(Config{RequireJobs: true}, nil).WarmAll(context.Background(), ""); !errors.Is(err, domain.ErrEmptyRegistry) {
		t.Fatalf("expected ErrEmptyRegistry, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	w := New(Config{}, nil)
	noop := func(context.Context) error { return nil }

	if err := w.Register(Job{Name: " ", Run: noop}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for blank name, got %v", err)
	}
	if err := w.Register(Job{Name: "x"}); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input for nil run, got %v", err)
	}
	mustRegister(t, w, Job{Name: "x", Run: noop})
	if err := w.Register(Job{Name: "x", Run: noop}); !errors.Is(err, domain.ErrDuplicateJob) {
		t.Fatalf("expected duplicate job, got %v", err)
	}

	if _, err := w.WarmAll(context.Background(), ""); err != nil {
		t.Fatalf("warm all: %v", err)
	}
	if err := w.Register(Job{Name: "late", Run: noop}); !errors.Is(err, domain.ErrRegistryFrozen) {
		t.Fatalf("expected frozen registry, got %v", err)
	}
	if len(w.Jobs()) != 1 {
		t.Fatalf("expected one registered job, got %d", len(w.Jobs()))
	}
}
