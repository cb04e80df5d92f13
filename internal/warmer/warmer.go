// Package warmer pre-populates hot cache keys with a bounded pool of warm jobs.
package warmer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"golang.org/x/sync/semaphore"
)

// Job computes one hot entry and stores it. Running it twice must leave the
// cache in the same state.
type Job struct {
	Name string
	Key  string
	Run  func(ctx context.Context) error
}

type Config struct {
	// Concurrency is the maximum number of jobs running at once.
	Concurrency int
	// Deadline bounds a whole WarmAll call.
	Deadline time.Duration
	// RequireJobs makes WarmAll fail on an empty registry.
	RequireJobs bool
}

// Warmer owns the job registry. The registry freezes on the first WarmAll.
type Warmer struct {
	mu     sync.Mutex
	jobs   []Job
	names  map[string]struct{}
	frozen bool

	cfg    Config
	logger *slog.Logger
	nowFn  func() time.Time
}

func New(cfg Config, logger *slog.Logger) *Warmer {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = 2 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Warmer{
		names:  map[string]struct{}{},
		cfg:    cfg,
		logger: logger,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (w *Warmer) Register(job Job) error {
	job.Name = strings.TrimSpace(job.Name)
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("register warm job %q: %w", job.Name, domain.ErrInvalidInput)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frozen {
		return fmt.Errorf("register warm job %q: %w", job.Name, domain.ErrRegistryFrozen)
	}
	if _, dup := w.names[job.Name]; dup {
		return fmt.Errorf("register warm job %q: %w", job.Name, domain.ErrDuplicateJob)
	}
	w.names[job.Name] = struct{}{}
	w.jobs = append(w.jobs, job)
	return nil
}

func (w *Warmer) Jobs() []Job {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Job(nil), w.jobs...)
}

type outcome struct {
	state  domain.JobState
	reason string
	kind   domain.FailureKind
}

// WarmAll runs every registered job and returns once each has settled.
// Job failures are reported, never returned. The error is non-nil only for an
// empty registry under RequireJobs, or when ctx was cancelled before every
// job started; the report is still complete in that case, with un-started
// jobs failed as cancelled. In-flight jobs are not interrupted by ctx, only
// by the run deadline.
func (w *Warmer) WarmAll(ctx context.Context, trigger string) (domain.WarmReport, error) {
	w.mu.Lock()
	w.frozen = true
	jobs := append([]Job(nil), w.jobs...)
	w.mu.Unlock()

	if trigger == "" {
		trigger = domain.TriggerManual
	}
	started := w.nowFn()
	report := domain.WarmReport{
		RunID:     uuid.NewString(),
		Trigger:   trigger,
		StartedAt: started,
		Succeeded: []string{},
		Failed:    []domain.JobFailure{},
	}
	if len(jobs) == 0 {
		report.FinishedAt = w.nowFn()
		if w.cfg.RequireJobs {
			return report, domain.ErrEmptyRegistry
		}
		return report, nil
	}

	deadline := started.Add(w.cfg.Deadline)
	dispatchCtx, cancelDispatch := context.WithDeadline(ctx, deadline)
	defer cancelDispatch()
	jobCtx, cancelJobs := context.WithDeadline(context.WithoutCancel(ctx), deadline)
	defer cancelJobs()

	results := make([]outcome, len(jobs))
	for i := range results {
		results[i] = outcome{state: domain.JobPending}
	}
	sem := semaphore.NewWeighted(int64(w.cfg.Concurrency))
	var wg sync.WaitGroup

	for i, job := range jobs {
		if stop := w.dispatchStopped(ctx, dispatchCtx); stop != nil {
			markUnstarted(results[i:], *stop)
			break
		}
		if err := sem.Acquire(dispatchCtx, 1); err != nil {
			stop := w.dispatchStopped(ctx, dispatchCtx)
			if stop == nil {
				stop = &outcome{state: domain.JobFailed, kind: domain.FailureTimeout, reason: err.Error()}
			}
			markUnstarted(results[i:], *stop)
			break
		}
		if stop := w.dispatchStopped(ctx, dispatchCtx); stop != nil {
			sem.Release(1)
			markUnstarted(results[i:], *stop)
			break
		}
		results[i].state = domain.JobRunning
		wg.Add(1)
		go func(i int, job Job) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = w.runJob(jobCtx, job)
		}(i, job)
	}
	wg.Wait()

	for i, job := range jobs {
		res := results[i]
		if res.state == domain.JobSucceeded {
			report.Succeeded = append(report.Succeeded, job.Name)
			continue
		}
		if res.kind == domain.FailureCancelled {
			report.Cancelled = true
		}
		report.Failed = append(report.Failed, domain.JobFailure{Name: job.Name, Reason: res.reason, Kind: res.kind})
	}
	report.FinishedAt = w.nowFn()

	w.logger.InfoContext(ctx, "warm run finished",
		"module", "warmer",
		"layer", "core",
		"operation", "warm_all",
		"outcome", outcomeLabel(report),
		"run_id", report.RunID,
		"trigger", report.Trigger,
		"succeeded", len(report.Succeeded),
		"failed", len(report.Failed),
		"duration_ms", report.Duration().Milliseconds(),
	)
	if report.Cancelled {
		return report, fmt.Errorf("warm run %s: %w", report.RunID, domain.ErrCancelled)
	}
	return report, nil
}

// dispatchStopped reports why no further job may start, or nil.
func (w *Warmer) dispatchStopped(callerCtx, dispatchCtx context.Context) *outcome {
	if callerCtx.Err() != nil {
		return &outcome{state: domain.JobFailed, kind: domain.FailureCancelled, reason: "cancelled before start"}
	}
	if dispatchCtx.Err() != nil {
		return &outcome{state: domain.JobFailed, kind: domain.FailureTimeout, reason: fmt.Sprintf("run deadline %s exceeded before start", w.cfg.Deadline)}
	}
	return nil
}

func (w *Warmer) runJob(ctx context.Context, job Job) outcome {
	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- job.Run(ctx)
	}()

	var res outcome
	select {
	case err := <-done:
		switch {
		case err == nil:
			res = outcome{state: domain.JobSucceeded}
		case errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil:
			res = outcome{state: domain.JobFailed, kind: domain.FailureTimeout, reason: fmt.Sprintf("timeout: %v", err)}
		default:
			res = outcome{state: domain.JobFailed, kind: domain.FailureJob, reason: fmt.Errorf("%w: %w", domain.ErrJobFailed, err).Error()}
		}
	case <-ctx.Done():
		// the job goroutine is abandoned; it observes ctx on its own
		res = outcome{state: domain.JobFailed, kind: domain.FailureTimeout, reason: fmt.Sprintf("timeout: still running after %s", time.Since(start).Round(time.Millisecond))}
	}

	fields := []any{
		"module", "warmer",
		"layer", "core",
		"operation", "run_job",
		"job", job.Name,
		"key", job.Key,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if res.state == domain.JobSucceeded {
		w.logger.DebugContext(ctx, "warm job succeeded", append(fields, "outcome", "success")...)
	} else {
		w.logger.WarnContext(ctx, "warm job failed", append(fields, "outcome", "failure", "kind", string(res.kind), "error", res.reason)...)
	}
	return res
}

func markUnstarted(results []outcome, stop outcome) {
	for i := range results {
		results[i] = stop
	}
}

func outcomeLabel(r domain.WarmReport) string {
	switch {
	case r.Cancelled:
		return "cancelled"
	case len(r.Failed) == 0:
		return "success"
	case len(r.Succeeded) == 0:
		return "failure"
	default:
		return "partial"
	}
}
