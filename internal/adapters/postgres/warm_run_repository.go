package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const maxListLimit = 200

type WarmRunRepository struct {
	db *gorm.DB
}

func NewWarmRunRepository(db *gorm.DB) *WarmRunRepository {
	return &WarmRunRepository{db: db}
}

// Record upserts by run id; re-recording the same report is a no-op.
func (r *WarmRunRepository) Record(ctx context.Context, report domain.WarmReport) error {
	row, err := toWarmRunModel(report)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "run_id"}}, DoNothing: true}).
		Create(&row).Error
}

func (r *WarmRunRepository) ListRecent(ctx context.Context, limit int) ([]domain.WarmReport, error) {
	limit = clampLimit(limit)
	var rows []warmRunModel
	if err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list warm runs: %w", err)
	}
	out := make([]domain.WarmReport, 0, len(rows))
	for _, row := range rows {
		report, err := fromWarmRunModel(row)
		if err != nil {
			return nil, err
		}
		out = append(out, report)
	}
	return out, nil
}

func (r *WarmRunRepository) Get(ctx context.Context, runID string) (domain.WarmReport, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return domain.WarmReport{}, domain.ErrInvalidInput
	}
	var row warmRunModel
	if err := r.db.WithContext(ctx).Where("run_id = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WarmReport{}, domain.ErrNotFound
		}
		return domain.WarmReport{}, err
	}
	return fromWarmRunModel(row)
}

// MemoryWarmRunRepository keeps run history in process when no database is configured.
type MemoryWarmRunRepository struct {
	mu   sync.Mutex
	rows map[string]domain.WarmReport
	max  int
}

func NewMemoryWarmRunRepository(max int) *MemoryWarmRunRepository {
	if max <= 0 {
		max = maxListLimit
	}
	return &MemoryWarmRunRepository{rows: map[string]domain.WarmReport{}, max: max}
}

func (r *MemoryWarmRunRepository) Record(_ context.Context, report domain.WarmReport) error {
	if _, err := uuid.Parse(report.RunID); err != nil {
		return domain.ErrInvalidInput
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[report.RunID]; ok {
		return nil
	}
	r.rows[report.RunID] = report
	if len(r.rows) > r.max {
		oldest := r.sortedLocked()[len(r.rows)-1]
		delete(r.rows, oldest.RunID)
	}
	return nil
}

func (r *MemoryWarmRunRepository) ListRecent(_ context.Context, limit int) ([]domain.WarmReport, error) {
	limit = clampLimit(limit)
	r.mu.Lock()
	defer r.mu.Unlock()
	sorted := r.sortedLocked()
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

func (r *MemoryWarmRunRepository) Get(_ context.Context, runID string) (domain.WarmReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report, ok := r.rows[runID]
	if !ok {
		return domain.WarmReport{}, domain.ErrNotFound
	}
	return report, nil
}

// sortedLocked returns runs newest first.
func (r *MemoryWarmRunRepository) sortedLocked() []domain.WarmReport {
	out := make([]domain.WarmReport, 0, len(r.rows))
	for _, row := range r.rows {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
