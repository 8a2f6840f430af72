package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/config"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/history"
	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/observability"
)

func newMigrateCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the history schema for the SQL backends",
		Args:  cobra.NoArgs,
		Example: `  shoutbox migrate
  SHOUTBOX_HISTORY_BACKEND=postgres DATABASE_URL=postgres://... shoutbox migrate
  shoutbox migrate --backend sqlite`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.HistoryBackend = backend
			}
			observability.InitLoggerWithLevel(cfg.ServiceName, cfg.LogLevel)
			return runMigrate(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "Override SHOUTBOX_HISTORY_BACKEND (postgres or sqlite)")

	return cmd
}

func runMigrate(ctx context.Context, cfg *config.Config) error {
	log := observability.GetLogger(ctx)

	switch cfg.HistoryBackend {
	case history.BackendPostgres, history.BackendSQLite:
	default:
		return fmt.Errorf("migrate: backend %q has no schema to apply", cfg.HistoryBackend)
	}

	// Opening a SQL store applies the schema.
	store, err := history.Open(ctx, historyOptions(cfg, nil))
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer store.Close()

	log.Info("history schema is up to date", zap.String("backend", cfg.HistoryBackend))
	return nil
}
