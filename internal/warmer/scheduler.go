package warmer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

// Runner triggers one warm run. The application service implements it so
// scheduled runs are recorded and published like manual ones.
type Runner interface {
	Warm(ctx context.Context, trigger string) (domain.WarmReport, error)
}

// Scheduler warms once at start (deploy trigger) and then every interval.
type Scheduler struct {
	logger   *slog.Logger
	runner   Runner
	interval time.Duration
}

func NewScheduler(logger *slog.Logger, runner Runner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{logger: logger, runner: runner, interval: interval}
}

func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	trigger := domain.TriggerDeploy
	for {
		if _, err := s.runner.Warm(ctx, trigger); err != nil && !errors.Is(err, domain.ErrCancelled) {
			s.logger.ErrorContext(ctx, "warm iteration failed",
				"module", "warmer.scheduler",
				"layer", "worker",
				"operation", "warm",
				"outcome", "failure",
				"trigger", trigger,
				"error", err,
			)
		}
		trigger = domain.TriggerScheduled

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
