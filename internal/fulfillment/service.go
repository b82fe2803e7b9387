// Package fulfillment runs the two stock-mutating operations: producing
// finished goods from raw materials and packing paid orders.
package fulfillment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/bom"
	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/orders"
	"github.com/angelmondragon/storefront-fulfillment/internal/packaging"
	"github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/metrics"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
)

const (
	opProduce = "produce"
	opPack    = "pack"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the fulfillment orchestrator.
type Service interface {
	Produce(ctx context.Context, input ProduceInput) (*ProductionResult, error)
	Pack(ctx context.Context, input PackInput) (*PackSummary, error)
	PackOrder(ctx context.Context, orderID uuid.UUID, performedBy *uuid.UUID) (*PackedOrder, error)
}

// Deps wires the orchestrator. Metrics may be nil.
type Deps struct {
	DB        txRunner
	Resolver  *bom.Resolver
	Packaging *packaging.Engine
	Ledger    *materials.Ledger
	Materials materials.Repository
	Products  products.Repository
	Orders    orders.Repository
	Movements stockledger.Repository
	Outbox    outbox.Emitter
	Metrics   *metrics.FulfillmentMetrics
	Logger    *logger.Logger
	Config    config.FulfillmentConfig
}

type service struct {
	db        txRunner
	resolver  *bom.Resolver
	packaging *packaging.Engine
	ledger    *materials.Ledger
	materials materials.Repository
	products  products.Repository
	orders    orders.Repository
	movements stockledger.Repository
	outbox    outbox.Emitter
	metrics   *metrics.FulfillmentMetrics
	logg      *logger.Logger
	cfg       config.FulfillmentConfig
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("db client required")
	case deps.Resolver == nil:
		return nil, fmt.Errorf("bom resolver required")
	case deps.Packaging == nil:
		return nil, fmt.Errorf("packaging engine required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("ledger required")
	case deps.Materials == nil:
		return nil, fmt.Errorf("material repository required")
	case deps.Products == nil:
		return nil, fmt.Errorf("product repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("order repository required")
	case deps.Movements == nil:
		return nil, fmt.Errorf("movement repository required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}

	cfg := deps.Config
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.PackConcurrency <= 0 {
		cfg.PackConcurrency = 1
	}
	return &service{
		db:        deps.DB,
		resolver:  deps.Resolver,
		packaging: deps.Packaging,
		ledger:    deps.Ledger,
		materials: deps.Materials,
		products:  deps.Products,
		orders:    deps.Orders,
		movements: deps.Movements,
		outbox:    deps.Outbox,
		metrics:   deps.Metrics,
		logg:      deps.Logger,
		cfg:       cfg,
		sleep:     sleepCtx,
	}, nil
}

// withRetry runs attempt until it succeeds or fails with anything other than
// a lost stock race. Each attempt is its own transaction and re-reads stock.
func (s *service) withRetry(ctx context.Context, operation string, attempt func(ctx context.Context) error) (int, error) {
	for n := 0; ; n++ {
		err := attempt(ctx)
		if err == nil {
			return n + 1, nil
		}
		if !pkgerrors.HasCode(err, pkgerrors.CodeConcurrencyConflict) || n >= s.cfg.MaxRetries {
			return n + 1, err
		}
		s.metrics.IncRetry(operation)
		if err := s.sleep(ctx, s.backoff(n)); err != nil {
			return n + 1, err
		}
	}
}

func (s *service) backoff(attempt int) time.Duration {
	base := s.cfg.RetryBackoff
	if base <= 0 {
		return 0
	}
	delay := base * time.Duration(attempt+1)
	return delay + time.Duration(rand.Int64N(int64(base)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case pkgerrors.HasCode(err, pkgerrors.CodeInsufficientMaterials):
		return metrics.OutcomeInsufficient
	case pkgerrors.HasCode(err, pkgerrors.CodeConcurrencyConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
