package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/psdstocks-cloud/creo-cache/internal/adapters/cache"
	"github.com/psdstocks-cloud/creo-cache/internal/adapters/edge"
	eventadapter "github.com/psdstocks-cloud/creo-cache/internal/adapters/events"
	grpcadapter "github.com/psdstocks-cloud/creo-cache/internal/adapters/grpc"
	httpadapter "github.com/psdstocks-cloud/creo-cache/internal/adapters/http"
	"github.com/psdstocks-cloud/creo-cache/internal/adapters/postgres"
	"github.com/psdstocks-cloud/creo-cache/internal/application"
	"github.com/psdstocks-cloud/creo-cache/internal/cache"
	"github.com/psdstocks-cloud/creo-cache/internal/domain"
	"github.com/psdstocks-cloud/creo-cache/internal/ports"
	"github.com/psdstocks-cloud/creo-cache/internal/warmer"
	"google.golang.org/grpc"
)

// Core is the process-wide object graph shared by the API, the worker and
// the CLI.
type Core struct {
	Config  Config
	Logger  *slog.Logger
	Store   *cache.Store
	Warmer  *warmer.Warmer
	Service *application.Service

	cleanupFn func(context.Context)
}

func NewLogger(cfg Config, out io.Writer) *slog.Logger {
	if out == nil {
		out = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel})).With("service", cfg.ServiceID)
}

// NewCore opens the backend and the optional collaborators. Postgres and
// Kafka fall back to in-process stand-ins when unconfigured.
func NewCore(ctx context.Context, cfg Config, logger *slog.Logger) (*Core, error) {
	if logger == nil {
		logger = NewLogger(cfg, nil)
	}
	var closers []io.Closer

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := cache.NewStore(backend, cache.Config{
		Namespace:       cfg.Namespace,
		OpTimeout:       cfg.OpTimeout,
		HealthThreshold: cfg.HealthThreshold,
	}, logger)
	closers = append(closers, store)

	cleanup := func(context.Context) {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}

	var edgeProvider ports.EdgeStatsProvider
	if cfg.EdgeStatsURL != "" {
		client, edgeErr := edge.NewClient(ctx, edge.Config{
			URL:          cfg.EdgeStatsURL,
			Timeout:      cfg.EdgeTimeout,
			UserAgent:    cfg.ServiceID + "/" + cfg.Version,
			StaticToken:  cfg.EdgeToken,
			TokenURL:     cfg.EdgeTokenURL,
			ClientID:     cfg.EdgeClientID,
			ClientSecret: cfg.EdgeClientSecret,
			Scopes:       cfg.EdgeScopes,
		})
		if edgeErr != nil {
			cleanup(ctx)
			return nil, edgeErr
		}
		edgeProvider = client
	}

	w := warmer.New(warmer.Config{
		Concurrency: cfg.WarmConcurrency,
		Deadline:    cfg.WarmDeadline,
		RequireJobs: cfg.WarmRequireJobs,
	}, logger)
	if err := registerWarmTargets(w, store, newUpstreamFetcher(cfg), cfg.WarmTargets); err != nil {
		cleanup(ctx)
		return nil, err
	}

	runs := ports.WarmRunRepository(postgres.NewMemoryWarmRunRepository(cfg.WarmRunHistory))
	if cfg.DatabaseURL != "" {
		db, dbErr := postgres.Connect(ctx, postgres.Options{URL: cfg.DatabaseURL, MaxConns: cfg.MaxDBConns})
		if dbErr != nil {
			cleanup(ctx)
			return nil, dbErr
		}
		sqlDB, dbErr := db.DB()
		if dbErr != nil {
			cleanup(ctx)
			return nil, dbErr
		}
		closers = append(closers, sqlDB)
		if dbErr := postgres.RunMigrations(ctx, db, logger); dbErr != nil {
			cleanup(ctx)
			return nil, dbErr
		}
		runs = postgres.NewWarmRunRepository(db)
	}

	publisher := ports.EventPublisher(eventadapter.NewLoggingPublisher(logger))
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher, pubErr := eventadapter.NewKafkaPublisher(eventadapter.KafkaConfig{
			Brokers:  cfg.KafkaBrokers,
			ClientID: cfg.ServiceID,
			Topics: map[string]string{
				domain.EventCacheCleared:       cfg.KafkaTopicCacheCleared,
				domain.EventCacheWarmCompleted: cfg.KafkaTopicWarmCompleted,
			},
		})
		if pubErr != nil {
			logger.WarnContext(ctx, "kafka publisher disabled, using logging publisher", "error", pubErr)
		} else {
			publisher = kafkaPublisher
			closers = append(closers, kafkaPublisher)
		}
	}

	service := application.NewService(application.Dependencies{
		Config:    application.Config{ServiceName: cfg.ServiceID, Version: cfg.Version},
		Store:     store,
		Warmer:    w,
		Edge:      edgeProvider,
		Runs:      runs,
		Publisher: publisher,
		Logger:    logger,
	})

	return &Core{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Warmer:    w,
		Service:   service,
		cleanupFn: cleanup,
	}, nil
}

func openBackend(ctx context.Context, cfg Config) (ports.Backend, error) {
	switch cfg.CacheBackend {
	case BackendMemory:
		return cacheadapter.NewMemoryBackend(), nil
	case BackendRedis:
		client, err := cacheadapter.Connect(ctx, cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return nil, err
		}
		return cacheadapter.NewRedisBackend(client), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.CacheBackend)
	}
}

// Close releases the backend and every collaborator opened by NewCore.
func (c *Core) Close(ctx context.Context) {
	if c.cleanupFn != nil {
		c.cleanupFn(ctx)
	}
}

type Runtime struct {
	core       *Core
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	scheduler  *warmer.Scheduler
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(cfg, os.Stdout)
	slog.SetDefault(logger)

	core, err := NewCore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	handler := httpadapter.NewHandler(core.Service)
	router := httpadapter.NewRouter(handler, logger)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewCacheHealthServer(core.Service))

	return &Runtime{
		core:       core,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		scheduler:  warmer.NewScheduler(logger, core.Service, cfg.WarmInterval),
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.core.Config.GRPCPort))
	if err != nil {
		r.core.Close(context.Background())
		return err
	}
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	r.logger.InfoContext(ctx, "api started",
		"http_port", r.core.Config.HTTPPort,
		"grpc_port", r.core.Config.GRPCPort,
		"backend", r.core.Config.CacheBackend,
	)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", runErr)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	r.core.Close(shutdownCtx)
	return runErr
}

// RunWorker warms on start and on every interval until a signal arrives.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer r.core.Close(context.Background())

	r.logger.InfoContext(ctx, "warm worker started",
		"interval", r.core.Config.WarmInterval.String(),
		"jobs", len(r.core.Warmer.Jobs()),
	)
	if err := r.scheduler.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
