package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/psdstocks-cloud/creo-cache/internal/ports"
)

type Config struct {
	ServiceName string
	Version     string
}

// CacheStore is the part of cache.Store the service drives.
type CacheStore interface {
	Health(ctx context.Context) domain.HealthStatus
	Statistics(ctx context.Context) (domain.CacheStatistics, error)
	Clear(ctx context.Context) error
	Namespace() string
}

type WarmRunner interface {
	WarmAll(ctx context.Context, trigger string) (domain.WarmReport, error)
}

type Service struct {
	cfg Config

	store     CacheStore
	warmer    WarmRunner
	edge      ports.EdgeStatsProvider
	runs      ports.WarmRunRepository
	publisher ports.EventPublisher
	logger    *slog.Logger

	nowFn func() time.Time
}

// Dependencies wires the service. Edge, Runs and Publisher are optional.
type Dependencies struct {
	Config Config

	Store     CacheStore
	Warmer    WarmRunner
	Edge      ports.EdgeStatsProvider
	Runs      ports.WarmRunRepository
	Publisher ports.EventPublisher
	Logger    *slog.Logger
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceName == "" {
		cfg.ServiceName = "creo-cache"
	}
	if cfg.Version == "" {
		cfg.Version = "0.1.0"
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		cfg:       cfg,
		store:     deps.Store,
		warmer:    deps.Warmer,
		edge:      deps.Edge,
		runs:      deps.Runs,
		publisher: deps.Publisher,
		logger:    logger,
		nowFn:     func() time.Time { return time.Now().UTC() },
	}
}
