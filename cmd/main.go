package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GolovachevS/dailybot/internal/config"
	migrate "github.com/GolovachevS/dailybot/internal/db"
	transport "github.com/GolovachevS/dailybot/internal/http"
	"github.com/GolovachevS/dailybot/internal/jira"
	"github.com/GolovachevS/dailybot/internal/jobs"
	applog "github.com/GolovachevS/dailybot/internal/logger"
	"github.com/GolovachevS/dailybot/internal/service"
	"github.com/GolovachevS/dailybot/internal/slackapi"
	postgres "github.com/GolovachevS/dailybot/internal/storage"
	mongostore "github.com/GolovachevS/dailybot/internal/storage/mongo"
	"github.com/GolovachevS/dailybot/internal/views"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("application stopped")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	serve := func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context(), configPath)
	}
	rootCmd := &cobra.Command{
		Use:           "dailybot",
		Short:         "Slack daily stand-up bot backed by Jira",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve Slack requests and run the daily summary schedule",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply the embedded Postgres migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrations(cmd.Context(), configPath)
			},
		},
	)
	return rootCmd
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := applog.New(cfg)

	mode, ok := views.ParseSummaryMode(cfg.Daily.SummaryMode)
	if !ok {
		return fmt.Errorf("unknown summary mode %q", cfg.Daily.SummaryMode)
	}

	repo, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(
		repo,
		jira.NewGateway(cfg.Jira, logger),
		slackapi.New(cfg.Slack, logger),
		logger,
		service.Options{Location: cfg.Location(), SummaryMode: mode},
	)
	// submissions accepted before shutdown still reach the store
	defer svc.Wait()

	scheduler, err := jobs.NewCron(cfg.Daily, cfg.Location(), logger, svc)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      transport.NewServer(svc, cfg.Slack.SigningSecret, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.Store.Driver).Msg("http server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

// openStore connects the configured backend and returns its release func.
func openStore(ctx context.Context, cfg config.Config, logger zerolog.Logger) (service.Repository, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverMongo:
		store, disconnect, err := mongostore.Connect(ctx, cfg.MongoURI(), cfg.Store.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := disconnect(disconnectCtx); err != nil {
				logger.Warn().Err(err).Msg("disconnect mongo")
			}
		}, nil
	default:
		pool, err := connectPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := applyMigrations(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	}
}

func connectPostgres(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	applied, err := migrate.Run(ctx, pool)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	logger.Info().Strs("files", applied).Msg("migrations applied")
	return nil
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := applog.New(cfg)

	if cfg.Store.Driver != config.StoreDriverPostgres {
		logger.Info().Str("store", cfg.Store.Driver).Msg("nothing to migrate")
		return nil
	}
	pool, err := connectPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()
	return applyMigrations(ctx, pool, logger)
}
