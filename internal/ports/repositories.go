package ports

import (
	"context"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

// WarmRunRepository keeps the history of warm runs for admin tooling.
type WarmRunRepository interface {
	Record(ctx context.Context, report domain.WarmReport) error
	ListRecent(ctx context.Context, limit int) ([]domain.WarmReport, error)
	Get(ctx context.Context, runID string) (domain.WarmReport, error)
}
