package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dashboard-refresher/internal/telemetry"
)

const pushJob = "dashboard_refresh"

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run one refresh and write the dashboard",
	Long: `Fetches every data section, merges it into TEMPLATE_FILE and writes
OUTPUT_FILE. Exits non-zero when revenue or trial data cannot be fetched or
the output cannot be written; other sections fall back and are reported.`,
	Args: cobra.NoArgs,
	RunE: runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := wire(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.service.Refresh(ctx)
	if report != nil {
		logger.Info("refresh finished",
			zap.String("run_id", report.RunID),
			zap.String("duration", report.Duration),
			zap.Int("degradations", len(report.Degradations)),
			zap.String("output", cfg.OutputFile),
		)
		for _, d := range report.Degradations {
			logger.Warn("degraded", zap.String("stage", d.Stage), zap.String("fallback", d.Fallback), zap.String("reason", d.Reason))
		}
	}

	pushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if perr := a.recorder.Push(pushCtx, cfg.PushgatewayURL, pushJob); perr != nil && !errors.Is(perr, telemetry.ErrNoPushgateway) {
		logger.Warn("metrics push failed", zap.Error(perr))
	}

	if err != nil {
		logger.Error("refresh failed", zap.Error(err))
		return err
	}
	return nil
}
