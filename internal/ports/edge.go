package ports

import (
	"context"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
)

type EdgeStatsProvider interface {
	FetchEdgeStats(ctx context.Context) (domain.EdgeStatistics, error)
}
