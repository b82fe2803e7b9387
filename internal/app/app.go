// Package app wires repositories and services into the graph shared by the
// api server, the cron worker and the fulfillctl tool.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/storefront-fulfillment/internal/bom"
	"github.com/angelmondragon/storefront-fulfillment/internal/fulfillment"
	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	"github.com/angelmondragon/storefront-fulfillment/internal/packaging"
	"github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/internal/promotions"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
)

// Repositories are the gorm-backed stores behind the services.
type Repositories struct {
	Materials  materials.Repository
	Products   products.Repository
	Movements  stockledger.Repository
	Packaging  packaging.Repository
	Promotions promotions.Repository
	Orders     orders.Repository
	Outbox     *outbox.Repository

	// events the outbox publisher gave up on
	DeadLetters *outbox.DeadLetterRepository
}

// App is the assembled service graph.
type App struct {
	Repos       Repositories
	Outbox      *outbox.Service
	Fulfillment fulfillment.Service
	Materials   materials.Service
	Ledger      stockledger.Service
	Packaging   packaging.Service
	Promotions  promotions.Service
	PromoEngine *promotions.Engine
	Orders      orders.Service
}

// New builds every service on top of client. Fulfillment metrics are
// registered on reg when it is non-nil.
func New(cfg *config.Config, client *db.Client, logg *logger.Logger, reg prometheus.Registerer) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if client == nil {
		return nil, fmt.Errorf("db client required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}

	conn := client.DB()
	repos := Repositories{
		Materials:  materials.NewRepository(conn),
		Products:   products.NewRepository(conn),
		Movements:  stockledger.NewRepository(conn),
		Packaging:  packaging.NewRepository(conn),
		Promotions: promotions.NewRepository(conn),
		Orders:     orders.NewRepository(conn),
		Outbox:     outbox.NewRepository(conn),

		DeadLetters: outbox.NewDeadLetterRepository(conn),
	}
	emitter := outbox.NewService(repos.Outbox, logg)
	ledger := materials.NewLedger(repos.Materials, repos.Movements)

	resolver, err := bom.NewResolver(repos.Products, repos.Materials)
	if err != nil {
		return nil, fmt.Errorf("bom resolver: %w", err)
	}
	engine, err := packaging.NewEngine(repos.Packaging)
	if err != nil {
		return nil, fmt.Errorf("packaging engine: %w", err)
	}
	promoEngine, err := promotions.NewEngine(repos.Promotions)
	if err != nil {
		return nil, fmt.Errorf("promotion engine: %w", err)
	}

	var fulfillmentMetrics *metrics.FulfillmentMetrics
	if reg != nil {
		fulfillmentMetrics = metrics.NewFulfillmentMetrics(reg)
	}
	fulfillmentSvc, err := fulfillment.NewService(fulfillment.Deps{
		DB:        client,
		Resolver:  resolver,
		Packaging: engine,
		Ledger:    ledger,
		Materials: repos.Materials,
		Products:  repos.Products,
		Orders:    repos.Orders,
		Movements: repos.Movements,
		Outbox:    emitter,
		Metrics:   fulfillmentMetrics,
		Logger:    logg,
		Config:    cfg.Fulfillment,
	})
	if err != nil {
		return nil, fmt.Errorf("fulfillment service: %w", err)
	}

	materialSvc, err := materials.NewService(client, repos.Materials, ledger, emitter, logg)
	if err != nil {
		return nil, fmt.Errorf("material service: %w", err)
	}
	ledgerSvc, err := stockledger.NewService(repos.Movements, repos.Materials)
	if err != nil {
		return nil, fmt.Errorf("stock ledger service: %w", err)
	}
	packagingSvc, err := packaging.NewService(repos.Packaging, repos.Materials)
	if err != nil {
		return nil, fmt.Errorf("packaging service: %w", err)
	}
	promoSvc, err := promotions.NewService(repos.Promotions, logg)
	if err != nil {
		return nil, fmt.Errorf("promotion service: %w", err)
	}
	orderSvc, err := orders.NewService(repos.Orders, repos.Products, promoEngine, client, emitter, logg)
	if err != nil {
		return nil, fmt.Errorf("order service: %w", err)
	}

	return &App{
		Repos:       repos,
		Outbox:      emitter,
		Fulfillment: fulfillmentSvc,
		Materials:   materialSvc,
		Ledger:      ledgerSvc,
		Packaging:   packagingSvc,
		Promotions:  promoSvc,
		PromoEngine: promoEngine,
		Orders:      orderSvc,
	}, nil
}
