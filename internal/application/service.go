package application

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/psdstocks-cloud/creo-cache/internal/contracts"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

func (s *Service) Health(ctx context.Context) domain.HealthStatus {
	return s.store.Health(ctx)
}

// Stats merges local counters with edge numbers. An unreachable edge provider
// zeroes the CDN fields instead of failing the request.
func (s *Service) Stats(ctx context.Context) (domain.CombinedStatistics, error) {
	local, err := s.store.Statistics(ctx)
	if err != nil {
		return domain.CombinedStatistics{}, err
	}
	out := domain.CombinedStatistics{
		TotalKeys:        local.TotalKeys,
		MemoryUsageBytes: local.MemoryUsageBytes,
		Hits:             local.Hits,
		Misses:           local.Misses,
		HitRate:          local.HitRate,
		MissRate:         local.MissRate,
		TotalRequests:    local.Hits + local.Misses,
	}
	if s.edge == nil {
		return out, nil
	}
	edgeStats, err := s.edge.FetchEdgeStats(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "edge stats unavailable, reporting local stats only",
			"module", "application",
			"layer", "service",
			"operation", "stats",
			"outcome", "degraded",
			"error", err,
		)
		return out, nil
	}
	out.CDNHitRate = edgeStats.HitRate
	out.CDNTotalRequests = edgeStats.TotalRequests
	return out, nil
}

// Clear wipes the namespace for every consumer; callers are administrative.
func (s *Service) Clear(ctx context.Context, requestID string) (time.Time, error) {
	if err := s.store.Clear(ctx); err != nil {
		return time.Time{}, err
	}
	now := s.nowFn()
	s.logger.WarnContext(ctx, "cache cleared",
		"module", "application",
		"layer", "service",
		"operation", "clear",
		"outcome", "success",
		"namespace", s.store.Namespace(),
		"request_id", requestID,
	)
	s.publish(ctx, domain.EventCacheCleared, s.store.Namespace(), contracts.CacheClearedPayload{
		Namespace: s.store.Namespace(),
		ClearedAt: now.Format(time.RFC3339),
		RequestID: requestID,
	})
	return now, nil
}

// Warm runs every warm job, records the report and announces it. The report
// is returned even when the run was cancelled.
func (s *Service) Warm(ctx context.Context, trigger string) (domain.WarmReport, error) {
	report, err := s.warmer.WarmAll(ctx, trigger)
	if errors.Is(err, domain.ErrEmptyRegistry) {
		return report, err
	}
	// a cancelled request must not prevent the history write
	bg := context.WithoutCancel(ctx)
	if s.runs != nil {
		if recErr := s.runs.Record(bg, report); recErr != nil {
			s.logger.ErrorContext(ctx, "record warm run failed",
				"module", "application",
				"layer", "service",
				"operation", "record_warm_run",
				"outcome", "failure",
				"run_id", report.RunID,
				"error", recErr,
			)
		}
	}
	failed := make([]string, 0, len(report.Failed))
	for _, f := range report.Failed {
		failed = append(failed, f.Name)
	}
	s.publish(bg, domain.EventCacheWarmCompleted, report.RunID, contracts.CacheWarmCompletedPayload{
		RunID:      report.RunID,
		Trigger:    report.Trigger,
		Succeeded:  report.Succeeded,
		Failed:     failed,
		Cancelled:  report.Cancelled,
		DurationMS: report.Duration().Milliseconds(),
		FinishedAt: report.FinishedAt.Format(time.RFC3339),
	})
	return report, err
}

func (s *Service) WarmRuns(ctx context.Context, limit int) ([]domain.WarmReport, error) {
	if s.runs == nil {
		return []domain.WarmReport{}, nil
	}
	return s.runs.ListRecent(ctx, limit)
}

func (s *Service) WarmRun(ctx context.Context, runID string) (domain.WarmReport, error) {
	runID = strings.TrimSpace(runID)
	if runID == "" {
		return domain.WarmReport{}, domain.ErrInvalidInput
	}
	if s.runs == nil {
		return domain.WarmReport{}, domain.ErrNotFound
	}
	return s.runs.Get(ctx, runID)
}

func (s *Service) publish(ctx context.Context, eventType, partitionKey string, payload any) {
	if s.publisher == nil || !domain.IsCanonicalEmittedEvent(eventType) {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	env := contracts.EventEnvelope{
		EventID:          uuid.NewString(),
		EventType:        eventType,
		EventClass:       domain.CanonicalEventClassOps,
		OccurredAt:       s.nowFn(),
		PartitionKeyPath: domain.CanonicalPartitionKeyPath(eventType),
		PartitionKey:     partitionKey,
		SourceService:    s.cfg.ServiceName,
		SchemaVersion:    "v1",
		Data:             data,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, raw, partitionKey); err != nil {
		s.logger.WarnContext(ctx, "event publish failed",
			"module", "application",
			"layer", "service",
			"operation", "publish",
			"outcome", "failure",
			"event_type", eventType,
			"error", err,
		)
	}
}
