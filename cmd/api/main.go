// Command api serves the admin and storefront HTTP surface.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront-fulfillment/api/routes"
	"github.com/angelmondragon/storefront-fulfillment/internal/app"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/instance"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/migrate"
	"github.com/angelmondragon/storefront-fulfillment/pkg/redis"
)

const (
	serviceKind     = "api"
	shutdownTimeout = 15 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
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

	// PORT wins so the container platform can pick it.
	addr := ":" + cfg.App.Port
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.GetID(),
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
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	services, err := app.New(cfg, dbClient, logg, reg)
	if err != nil {
		logg.Error(ctx, "failed to build services", err)
		return err
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Fulfillment: services.Fulfillment,
			Materials:   services.Materials,
			Ledger:      services.Ledger,
			Packaging:   services.Packaging,
			Promotions:  services.Promotions,
			PromoEngine: services.PromoEngine,
			Orders:      services.Orders,
		}, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			Metrics:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logg.Info(ctx, "starting api server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		return err
	}
	logg.Info(ctx, "api server shut down gracefully")
	return nil
}

func closeQuietly(ctx context.Context, logg *logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}
