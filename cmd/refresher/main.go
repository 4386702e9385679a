package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dashboard-refresher/internal/config"
	"dashboard-refresher/internal/logging"
)

var (
	verbose bool
	envFile string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "refresher",
	Short: "Refreshes the analytics dashboard from the query backend",
	Long: `refresher pulls revenue, trial, active-user and plan-mix data from
Metabase (or a SQL mirror of the warehouse), normalizes it into dense
per-product series and dedup statistics, and merges it into the dashboard
template.

Run "refresher refresh" once from cron, or "refresher serve" for the HTTP API
with a built-in scheduler.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}
		if err := config.LoadEnvironment(envFile); err != nil {
			return err
		}
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file to load before reading configuration")

	rootCmd.AddCommand(refreshCmd, serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
