package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dashboard-refresher/internal/config"
	dashFile "dashboard-refresher/internal/dashboard/adapters/file"
	dashNotify "dashboard-refresher/internal/dashboard/adapters/notify"
	dashUsecase "dashboard-refresher/internal/dashboard/core/usecase"
	seriesMetabase "dashboard-refresher/internal/series/adapters/metabase"
	seriesPg "dashboard-refresher/internal/series/adapters/postgres"
	seriesPorts "dashboard-refresher/internal/series/core/ports"
	seriesUsecase "dashboard-refresher/internal/series/core/usecase"
	statsMemory "dashboard-refresher/internal/stats/adapters/memory"
	statsRedis "dashboard-refresher/internal/stats/adapters/redis"
	statsPorts "dashboard-refresher/internal/stats/core/ports"
	statsUsecase "dashboard-refresher/internal/stats/core/usecase"
	"dashboard-refresher/internal/telemetry"
)

// application is the fully wired object graph shared by both commands.
type application struct {
	service  *dashUsecase.DashboardService
	adhoc    *statsUsecase.AdHocStatsUseCase
	store    *dashFile.Store
	recorder *telemetry.Recorder
	closers  []func() error
}

func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("close failed", zap.Error(err))
		}
	}
}

func wire(ctx context.Context, cfg *config.Config, longLived bool) (*application, error) {
	a := &application{recorder: telemetry.NewRecorder(longLived)}

	normalizer, err := cfg.Labels.Normalizer()
	if err != nil {
		return nil, err
	}
	products := normalizer.Products()

	// Query backend
	backend, err := newBackend(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	fetcher := seriesUsecase.NewFetcher(backend,
		seriesUsecase.WithRetry(seriesUsecase.RetryPolicy{Attempts: cfg.FetchRetries, Base: cfg.FetchBackoff}),
		seriesUsecase.WithLogger(logger),
		seriesUsecase.WithObserver(a.recorder),
	)

	// Series usecases
	sources := seriesUsecase.Sources{
		RevenueSource: cfg.RevenueSource,
		TrialSource:   cfg.TrialSource,
		PurchaseTable: cfg.PurchaseTable,
	}
	revenueUC := seriesUsecase.NewRevenueUseCase(fetcher, normalizer, cfg.RevenueSource, cfg.ShardParallelism)
	trialsUC := seriesUsecase.NewTrialsUseCase(fetcher, normalizer, cfg.TrialSource)
	planMixUC := seriesUsecase.NewPlanMixUseCase(fetcher, normalizer, cfg.PurchaseTable)
	usersUC := seriesUsecase.NewActiveUsersUseCase(fetcher, normalizer, sources, cfg.Labels.TrialWindows)

	// Dedup statistics
	static, err := cfg.Labels.StaticFallback(products)
	if err != nil {
		a.Close()
		return nil, err
	}
	statsUC := statsUsecase.NewStatsUseCase(
		seriesUsecase.NewIdentitySource(fetcher, normalizer, cfg.PurchaseTable),
		products,
		statsUsecase.WithSnapshots(newSnapshots(cfg, a)),
		statsUsecase.WithStaticFallback(static),
		statsUsecase.WithLogger(logger),
		statsUsecase.WithFallbackObserver(a.recorder),
	)
	a.adhoc = statsUsecase.NewAdHocStatsUseCase(normalizer, products)

	// Refresh + publish
	refreshUC := dashUsecase.NewRefreshUseCase(dashUsecase.RefreshDeps{
		Revenue:     revenueUC,
		Trials:      trialsUC,
		PlanMix:     planMixUC,
		Users:       usersUC,
		Stats:       statsUC,
		Products:    products,
		Countries:   normalizer.Countries(),
		StaticUsers: cfg.Labels.StaticUsers(products),
		Start:       cfg.Start,
		Logger:      logger,
	})
	a.store = dashFile.NewStore(cfg.TemplateFile, cfg.OutputFile, logger)

	opts := []dashUsecase.ServiceOption{
		dashUsecase.WithRefreshObserver(a.recorder),
		dashUsecase.WithServiceLogger(logger),
	}
	if slack := dashNotify.NewSlackNotifier(cfg.SlackWebhookURL, cfg.DashboardName); slack.Enabled() {
		opts = append(opts, dashUsecase.WithNotifier(slack))
	}
	merger := dashUsecase.Merger{Passthrough: cfg.Passthrough, Location: time.Local}
	a.service = dashUsecase.NewDashboardService(refreshUC, a.store, merger, opts...)

	return a, nil
}

func newBackend(ctx context.Context, cfg *config.Config, a *application) (seriesPorts.QueryBackendPort, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := seriesPg.Open(ctx, cfg.WarehouseDriver, cfg.WarehouseDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		logger.Info("query backend ready", zap.String("backend", cfg.Backend), zap.String("driver", cfg.WarehouseDriver))
		return seriesPg.NewQueryBackend(seriesPg.NewSQLDB(db), cfg.WarehouseTables).WithTimeout(cfg.FetchTimeout), nil
	case config.BackendMetabase:
		client, err := seriesMetabase.NewClient(cfg.MetabaseURL, cfg.MetabaseAPIKey, cfg.MetabaseDatabaseID, cfg.FetchTimeout)
		if err != nil {
			return nil, err
		}
		logger.Info("query backend ready", zap.String("backend", cfg.Backend), zap.String("url", cfg.MetabaseURL))
		return client, nil
	default:
		return nil, fmt.Errorf("%w, got %q", config.ErrBadBackend, cfg.Backend)
	}
}

// newSnapshots prefers Redis; without it (or when it is unreachable)
// snapshots only live as long as the process.
func newSnapshots(cfg *config.Config, a *application) statsPorts.SnapshotStorePort {
	if cfg.RedisURL != "" {
		store, err := statsRedis.NewSnapshotStore(cfg.RedisURL, cfg.SnapshotPrefix, cfg.SnapshotTTL)
		if err == nil {
			a.closers = append(a.closers, store.Close)
			return store
		}
		logger.Warn("redis unavailable, keeping snapshots in memory", zap.Error(err))
	}
	return statsMemory.NewSnapshotStore()
}
