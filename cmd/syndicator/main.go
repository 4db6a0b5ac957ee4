package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"portal_sync/internal/adapter"
	"portal_sync/internal/config"
	"portal_sync/internal/domain"
	"portal_sync/internal/notifier"
	"portal_sync/internal/scheduler"
	"portal_sync/internal/server"
	"portal_sync/internal/service"
	"portal_sync/internal/storage/postgres"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "syndicator",
		Short:         "Distributes catalog listings to real-estate portals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")

	root.AddCommand(
		newServeCmd(),
		newDrainCmd(),
		newEnqueueCmd(),
		newTestCmd(),
		newRotateTokenCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app is the composition root shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *sqlx.DB

	portals  *postgres.PortalStore
	listings *postgres.ListingStore
	pubs     *postgres.PublicationStore
	jobs     *postgres.JobStore
	syncLogs *postgres.SyncLogStore
	tx       *postgres.TransactionManager

	adapters *adapter.Factory
	retry    domain.RetryPolicy
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	logger.Info("connected to database")

	portals := postgres.NewPortalStore(db)

	return &app{
		cfg:      cfg,
		logger:   logger,
		db:       db,
		portals:  portals,
		listings: postgres.NewListingStore(db),
		pubs:     postgres.NewPublicationStore(db),
		jobs:     postgres.NewJobStore(db),
		syncLogs: postgres.NewSyncLogStore(db),
		tx:       postgres.NewTransactionManager(db),
		adapters: adapter.NewFactory(adapter.Config{Timeout: cfg.Dispatch.CallTimeout}, portals, logger),
		retry: domain.RetryPolicy{
			MaxAttempts:    cfg.Dispatch.Retry.MaxAttempts,
			InitialBackoff: cfg.Dispatch.Retry.InitialBackoff,
			MaxBackoff:     cfg.Dispatch.Retry.MaxBackoff,
		},
	}, nil
}

func (a *app) close() {
	a.db.Close()
}

func (a *app) newDispatcher(n service.Notifier) *service.Dispatcher {
	return service.NewDispatcher(
		a.portals,
		a.listings,
		a.pubs,
		a.jobs,
		a.adapters,
		n,
		a.retry,
		a.cfg.Dispatch.CallTimeout,
		a.logger,
	)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the feed endpoint, admin API and periodic queue drain",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			var events service.Notifier
			if a.cfg.RabbitMQ.Enabled {
				rmq, err := notifier.NewRabbitMQ(notifier.Config{
					URL:        a.cfg.RabbitMQ.URL,
					Exchange:   a.cfg.RabbitMQ.Exchange,
					RoutingKey: a.cfg.RabbitMQ.RoutingKey,
					QueueName:  a.cfg.RabbitMQ.QueueName,
				}, a.logger)
				if err != nil {
					return fmt.Errorf("connect to rabbitmq: %w", err)
				}
				defer rmq.Close()
				events = rmq
			}

			dispatcher := a.newDispatcher(events)
			feedSvc := service.NewFeedService(a.portals, a.listings, a.syncLogs, a.cfg.Server.FeedBaseURL, a.logger)
			enqueuer := service.NewEnqueuer(a.portals, a.pubs, a.jobs, a.tx, a.retry, a.logger)
			registry := service.NewRegistry(a.portals, a.cfg.Server.FeedBaseURL, a.logger)
			connectivity := service.NewConnectivityService(a.portals, a.adapters, a.syncLogs, a.cfg.Server.FeedBaseURL, a.cfg.Dispatch.CallTimeout, a.logger)

			srv := server.New(
				a.cfg.Server.Port,
				feedSvc,
				dispatcher,
				enqueuer,
				connectivity,
				registry,
				a.pubs,
				a.cfg.Dispatch.BatchSize,
				a.logger,
			)
			sched := scheduler.NewScheduler(dispatcher, a.cfg.Dispatch.Interval, a.cfg.Dispatch.BatchSize, a.logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go func() {
				sigCh := make(chan os.Signal, 1)
				signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
				sig := <-sigCh
				a.logger.Info("received shutdown signal", "signal", sig)
				cancel()
			}()

			errCh := make(chan error, 1)
			go func() {
				if err := srv.Start(); err != nil && err != http.ErrServerClosed {
					errCh <- fmt.Errorf("http server: %w", err)
				}
			}()
			go func() {
				if err := sched.Start(ctx); err != nil && err != context.Canceled {
					errCh <- fmt.Errorf("scheduler: %w", err)
				}
			}()

			select {
			case <-ctx.Done():
			case err := <-errCh:
				cancel()
				_ = srv.Stop(context.Background())
				return err
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Stop(shutdownCtx)
		},
	}
}

func newDrainCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Process due jobs from the queue once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			if batchSize <= 0 {
				batchSize = a.cfg.Dispatch.BatchSize
			}

			stats, err := a.newDispatcher(nil).Drain(cmd.Context(), batchSize)
			if err != nil {
				return err
			}

			a.logger.Info("drain finished",
				"claimed", stats.Claimed,
				"succeeded", stats.Succeeded,
				"rescheduled", stats.Rescheduled,
				"failed", stats.Failed,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch", 0, "max jobs to claim (default from config)")
	return cmd
}

func newEnqueueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enqueue <portal-id> <listing-id> <action>",
		Short: "Queue a publish/update/pause/remove job",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			portalID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid portal id %q", args[0])
			}
			listingID, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid listing id %q", args[1])
			}
			if !domain.ValidAction(args[2]) {
				return fmt.Errorf("unknown action %q", args[2])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			enqueuer := service.NewEnqueuer(a.portals, a.pubs, a.jobs, a.tx, a.retry, a.logger)
			job, err := enqueuer.Enqueue(cmd.Context(), portalID, listingID, domain.JobAction(args[2]))
			if err != nil {
				return err
			}

			a.logger.Info("enqueued", "job_id", job.ID, "next_run_at", job.NextRunAt)
			return nil
		},
	}
}

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test <portal-id>",
		Short: "Check a portal's credentials without touching listings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			portalID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid portal id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			connectivity := service.NewConnectivityService(a.portals, a.adapters, a.syncLogs, a.cfg.Server.FeedBaseURL, a.cfg.Dispatch.CallTimeout, a.logger)
			result, err := connectivity.Test(cmd.Context(), portalID)
			if err != nil {
				return err
			}

			out, _ := json.MarshalIndent(result, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func newRotateTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate-token <portal-id>",
		Short: "Replace a portal's feed token, invalidating the old feed URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			portalID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid portal id %q", args[0])
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			registry := service.NewRegistry(a.portals, a.cfg.Server.FeedBaseURL, a.logger)
			token, err := registry.RotateToken(cmd.Context(), portalID)
			if err != nil {
				return err
			}

			fmt.Println(token)
			return nil
		},
	}
}

func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	var handler slog.Handler
	if format == "text" {
		handler = tint.NewHandler(os.Stdout, &tint.Options{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}
