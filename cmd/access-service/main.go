package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Dhoini/stream-access-service/internal/app"
	"github.com/Dhoini/stream-access-service/internal/config"
	"github.com/Dhoini/stream-access-service/internal/repository/postgres"
	"github.com/Dhoini/stream-access-service/pkg/logger"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envPath string

	rootCmd := &cobra.Command{
		Use:          "access-service",
		Short:        "Stream access service: paid stream entitlements and checkout",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "path to an optional .env file")

	rootCmd.AddCommand(
		newServeCmd(&envPath),
		newMigrateCmd(&envPath),
	)
	return rootCmd
}

// loadConfig читает конфигурацию и создает логгер под окружение
func loadConfig(envPath string) (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig(envPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.NewForEnv(cfg.App.Env, cfg.Log.Level), nil
}

func newServeCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*envPath)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Infow("Stream access service starting up...", "env", cfg.App.Env, "policy", cfg.Access.SubscriptionPolicy)

			application, err := app.New(ctx, cfg, log)
			if err != nil {
				log.Errorw("Failed to initialize application", "error", err)
				return err
			}
			defer application.Close()

			if err := application.Run(ctx); err != nil {
				log.Errorw("Server stopped with error", "error", err)
				return err
			}
			log.Infow("Stream access service stopped")
			return nil
		},
	}
}

func newMigrateCmd(envPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig(*envPath)
			if err != nil {
				return err
			}
			defer log.Sync() //nolint:errcheck

			ctx := cmd.Context()
			pool, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
			if err != nil {
				return fmt.Errorf("failed to connect to postgres: %w", err)
			}
			defer pool.Close()

			return postgres.Migrate(ctx, pool, log)
		},
	}
}
