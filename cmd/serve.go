package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cartpilot-io/cartpilot/internal/api"
	"github.com/cartpilot-io/cartpilot/internal/browser"
	"github.com/cartpilot-io/cartpilot/internal/jobs"
	"github.com/cartpilot-io/cartpilot/internal/observability"
)

// newServeCmd creates and configures the `serve` command: the job service
// hosting the checkout and status endpoints.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the automation job service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.listen_addr", cmd.Flags().Lookup("listen")); err != nil {
				return err
			}
			return viper.BindPFlag("database.url", cmd.Flags().Lookup("database-url"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()
			cfg := appCfg

			if err := viper.Unmarshal(cfg); err != nil {
				return fmt.Errorf("failed to re-unmarshal config with flag overrides: %w", err)
			}

			manager := browser.NewManager(cfg.Browser, logger)
			registry := jobs.NewRegistry(logger)
			executor := jobs.NewAgentExecutor(manager, cfg.Browser, logger)

			var runnerOpts []jobs.RunnerOption
			var pool *pgxpool.Pool
			if cfg.Database.URL != "" {
				var err error
				pool, err = pgxpool.New(ctx, cfg.Database.URL)
				if err != nil {
					return fmt.Errorf("failed to connect to database: %w", err)
				}
				store := jobs.NewStore(pool, logger)
				if err := store.EnsureSchema(ctx); err != nil {
					pool.Close()
					return err
				}
				runnerOpts = append(runnerOpts, jobs.WithArchive(store))
				logger.Info("Run archive enabled.")
			}

			runner := jobs.NewRunner(registry, executor, logger, runnerOpts...)
			handler := api.NewHandler(runner, registry, cfg.Checkout, logger)
			server := api.NewServer(cfg.Server, handler, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Run(gctx)
			})

			err := g.Wait()

			// Let in-flight jobs finish, then release the browser and pool.
			logger.Info("Waiting for running jobs to finish.")
			runner.Wait()

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil {
				logger.Warn("Error during browser manager shutdown", zap.Error(shutdownErr))
			}
			if pool != nil {
				pool.Close()
			}
			return err
		},
	}

	serveCmd.Flags().StringP("listen", "l", "", "Listen address for the HTTP API. (Overrides config/env)")
	serveCmd.Flags().String("database-url", "", "Postgres URL for the run archive; empty disables archiving. (Overrides config/env)")

	return serveCmd
}
