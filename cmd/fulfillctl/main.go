// Command fulfillctl runs fulfillment and inventory operations from a shell,
// against the same database the api server uses.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-fulfillment/internal/app"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(loadRuntime).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadRuntime connects to the configured database and builds the services.
func loadRuntime(ctx context.Context) (*toolDeps, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = "fulfillctl"

	logg := logger.New(logger.Options{
		ServiceName: "fulfillctl",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Output:      os.Stderr,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, err
	}
	services, err := app.New(cfg, dbClient, logg, nil)
	if err != nil {
		_ = dbClient.Close()
		return nil, err
	}
	return &toolDeps{
		cfg:      cfg,
		logg:     logg,
		services: services,
		close:    dbClient.Close,
	}, nil
}
