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

	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/instance"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/migrate"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-fulfillment/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
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

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap pubsub", err)
		return err
	}
	defer closeQuietly(ctx, logg, "pubsub client", pubsubClient.Close)

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(ctx, "failed to build event registry", err)
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	relay, err := NewRelay(RelayParams{
		Config:      cfg,
		Logger:      logg,
		DB:          dbClient,
		PubSub:      pubsubClient,
		Events:      outbox.NewRepository(dbClient.DB()),
		DeadLetters: outbox.NewDeadLetterRepository(dbClient.DB()),
		Registry:    eventRegistry,
		Metrics:     metrics.NewOutboxMetrics(reg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create outbox relay", err)
		return err
	}

	defer metrics.Serve(ctx, logg, cfg.Outbox.MetricsAddr, reg)()

	logg.Info(logg.WithField(ctx, "topics", eventRegistry.Topics()), "starting outbox publisher")
	err = relay.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logg.Info(ctx, "outbox publisher shut down gracefully")
		return nil
	}
	if err != nil {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
	}
	return err
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
