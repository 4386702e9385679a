package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	fiberSwagger "github.com/swaggo/fiber-swagger"
	"go.uber.org/zap"

	dashHttp "dashboard-refresher/internal/dashboard/adapters/http/fiber"
	dashUsecase "dashboard-refresher/internal/dashboard/core/usecase"
	"dashboard-refresher/internal/telemetry"

	_ "dashboard-refresher/docs"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API and refresh on a schedule",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := wire(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.recorder.Register(telemetry.NewReportCollector(a.service.LastReport)); err != nil {
		return err
	}

	// HTTP (Fiber) app + handlers
	app := fiber.New(fiber.Config{AppName: "dashboard-refresher"})

	handler := dashHttp.NewDashboardHandler(a.service, a.adhoc)
	handler.Register(app)

	app.Get("/metrics", adaptor.HTTPHandler(a.recorder.Handler()))

	// Swagger
	app.Get("/docs/*", fiberSwagger.WrapHandler)

	// Scheduler + template watcher
	scheduler := dashUsecase.Scheduler{
		Interval: cfg.RefreshInterval,
		Logger:   logger,
		Run: func(ctx context.Context) {
			if _, err := a.service.Refresh(ctx); err != nil {
				logger.Error("scheduled refresh failed", zap.Error(err))
			}
		},
	}
	go scheduler.Start(ctx)

	if err := a.store.Watch(ctx, func(ctx context.Context) {
		if err := a.service.Remerge(ctx); err != nil {
			logger.Error("re-merge after template change failed", zap.Error(err))
		}
	}); err != nil {
		logger.Warn("template watch disabled", zap.Error(err))
	}

	// Graceful shutdown
	go func() {
		if err := app.Listen(cfg.ServerAddr); err != nil {
			logger.Error("fiber stopped", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("addr", cfg.ServerAddr))

	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("fiber shutdown error", zap.Error(err))
	}

	logger.Info("server exiting")
	return nil
}
