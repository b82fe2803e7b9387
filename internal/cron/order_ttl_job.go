package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

const (
	defaultPendingTTL = 72 * time.Hour
	orderTTLBatch     = 500
)

type staleOrderExpirer interface {
	ExpireStale(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type OrderTTLJobParams struct {
	Logger *logger.Logger
	Orders staleOrderExpirer
	TTL    time.Duration
}

// NewOrderTTLJob cancels pending orders that were never paid within the TTL.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = defaultPendingTTL
	}
	return &orderTTLJob{
		logg:   params.Logger,
		orders: params.Orders,
		ttl:    ttl,
		batch:  orderTTLBatch,
		now:    time.Now,
	}, nil
}

type orderTTLJob struct {
	logg   *logger.Logger
	orders staleOrderExpirer
	ttl    time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	total := 0
	for {
		cancelled, err := j.orders.ExpireStale(ctx, cutoff, j.batch)
		total += cancelled
		if err != nil {
			return fmt.Errorf("expire pending orders: %w", err)
		}
		// a short page means the backlog is drained; skipped rows would
		// otherwise keep a full page coming back forever
		if cancelled < j.batch {
			break
		}
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff,
		"orders_canceled": total,
	})
	j.logg.Info(logCtx, "pending order expiration complete")
	return nil
}
