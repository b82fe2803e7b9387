// Command cron-worker runs the inventory and housekeeping jobs on an
// interval, each guarded by a redis lease.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/storefront-fulfillment/internal/app"
	"github.com/angelmondragon/storefront-fulfillment/internal/cron"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/instance"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/migrate"
	"github.com/angelmondragon/storefront-fulfillment/pkg/redis"
)

const serviceKind = "cron-worker"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var once string
	cmd := &cobra.Command{
		Use:          serviceKind,
		Short:        "Run scheduled inventory jobs",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), once)
		},
	}
	cmd.Flags().StringVar(&once, "once", "", "run the named job a single time and exit")

	if err := cmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context, once string) error {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		return err
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": serviceKind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		return err
	}
	defer closeQuietly(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		return err
	}
	defer closeQuietly(ctx, logg, "redis", redisClient.Close)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	services, err := app.New(cfg, dbClient, logg, reg)
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		return err
	}
	worker, err := buildService(cfg, logg, dbClient, redisClient, services, metrics.NewCronJobMetrics(reg))
	if err != nil {
		logg.Error(ctx, "failed to create cron service", err)
		return err
	}

	if once != "" {
		return worker.RunJob(ctx, once)
	}

	defer metrics.Serve(ctx, logg, cfg.Inventory.CronMetricsAddr, reg)()
	logg.Info(ctx, "starting cron worker")
	err = worker.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		logg.Info(ctx, "cron worker shut down gracefully")
		return nil
	}
	logg.Error(ctx, "cron worker stopped unexpectedly", err)
	return err
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, services *app.App, jobMetrics *metrics.CronJobMetrics) (*cron.Service, error) {
	lowStock, err := cron.NewLowStockJob(cron.LowStockJobParams{
		Logger:    logg,
		DB:        dbClient,
		Materials: services.Repos.Materials,
		Alerts:    redisClient,
		Outbox:    services.Outbox,
	})
	if err != nil {
		return nil, err
	}
	orderTTL, err := cron.NewOrderTTLJob(cron.OrderTTLJobParams{
		Logger: logg,
		Orders: services.Orders,
		TTL:    cfg.Orders.PendingTTL,
	})
	if err != nil {
		return nil, err
	}
	reconcile, err := cron.NewLedgerReconcileJob(logg, services.Ledger)
	if err != nil {
		return nil, err
	}
	retention, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: services.Repos.Outbox,
	})
	if err != nil {
		return nil, err
	}

	registry, err := cron.NewRegistry(lowStock, orderTTL, reconcile, retention)
	if err != nil {
		return nil, err
	}
	locker, err := cron.NewRedisLocker(redisClient, 0)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locker:   locker,
		Metrics:  jobMetrics,
		Interval: cfg.Inventory.CronInterval,
	})
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
