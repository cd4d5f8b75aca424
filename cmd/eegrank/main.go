// Command eegrank serves the EEG snippet ranking API and runs
// unattended ranking sessions against an automated comparator.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/seizurelab/eegrank/infrastructure/api"
	"github.com/seizurelab/eegrank/infrastructure/edf"
	"github.com/seizurelab/eegrank/infrastructure/middleware"
	"github.com/seizurelab/eegrank/infrastructure/oracle"
	"github.com/seizurelab/eegrank/infrastructure/store"
	"github.com/seizurelab/eegrank/internal/application"
	"github.com/seizurelab/eegrank/internal/session"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:          "eegrank",
		Short:        "Pairwise ranking of EEG snippets by seizure likelihood",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	root.AddCommand(serveCmd(), rankCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// buildController assembles the snippet store, comparison log, and
// session controller shared by both commands. The caller owns closing
// the returned database.
func buildController(cfg application.Config, logger *slog.Logger, metricsOn bool) (*session.Controller, *edf.Store, *store.SQLiteStore, error) {
	snippets, err := edf.NewStore(cfg.Data.EDFDir, cfg.Data.CacheDir, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("snippet store: %w", err)
	}
	db, err := store.Open(cfg.Data.DatabasePath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("comparison log: %w", err)
	}

	opts := []session.Option{
		session.WithSubsetSize(cfg.Session.SubsetSize),
		session.WithRater(cfg.Session.Rater),
		session.WithLogger(logger),
	}
	if metricsOn {
		opts = append(opts, session.WithMetrics(middleware.NewPrometheusMetrics()))
	}
	return session.NewController(snippets, db, opts...), snippets, db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the snippet pool and ranking session API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			cfg, err := application.LoadConfig(configPath)
			if err != nil {
				return err
			}

			ctrl, snippets, db, err := buildController(cfg, logger, true)
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           api.NewServer(snippets, db, ctrl, logger).Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutdown: %w", err)
			}
			return nil
		},
	}
}

func rankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rank",
		Short: "Run one unattended ranking session using the LLM comparator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			cfg, err := application.LoadConfig(configPath)
			if err != nil {
				return err
			}
			if !cfg.Oracle.Enabled {
				return errors.New("oracle is disabled; enable it in the config to rank unattended")
			}

			judge, err := oracle.NewOpenAI(oracle.Config{
				APIKey:            cfg.Oracle.APIKey,
				Model:             cfg.Oracle.Model,
				RequestsPerMinute: cfg.Oracle.RequestsPerMinute,
			})
			if err != nil {
				return fmt.Errorf("oracle: %w", err)
			}

			ctrl, _, db, err := buildController(cfg, logger, false)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := ctrl.Start(ctx); err != nil {
				return fmt.Errorf("start session: %w", err)
			}
			if err := ctrl.RunWithOracle(ctx, judge); err != nil {
				return err
			}

			snapshot := ctrl.Snapshot()
			logger.Info("session complete", "comparisons", snapshot.Comparisons)
			for i, id := range snapshot.Ranking {
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %s\n", i+1, id)
			}
			return nil
		},
	}
}
