package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

// alerts outlive the day they are keyed on so clock skew cannot re-fire them
const lowStockAlertTTL = 26 * time.Hour

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type lowStockReader interface {
	ListLowStock(ctx context.Context) ([]models.Material, error)
}

type alertDeduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	LowStockAlertKey(materialID, day string) string
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Materials lowStockReader
	Alerts    alertDeduper
	Outbox    outbox.Emitter
}

// NewLowStockJob emits low_stock_detected for every material at or below its
// threshold, at most once per material per UTC day.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Materials == nil {
		return nil, fmt.Errorf("material reader required")
	}
	if params.Alerts == nil {
		return nil, fmt.Errorf("alert store required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &lowStockJob{
		logg:      params.Logger,
		db:        params.DB,
		materials: params.Materials,
		alerts:    params.Alerts,
		outbox:    params.Outbox,
		now:       time.Now,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	db        txRunner
	materials lowStockReader
	alerts    alertDeduper
	outbox    outbox.Emitter
	now       func() time.Time
}

func (j *lowStockJob) Name() string { return "low-stock-scan" }

func (j *lowStockJob) Run(ctx context.Context) error {
	rows, err := j.materials.ListLowStock(ctx)
	if err != nil {
		return fmt.Errorf("list low stock materials: %w", err)
	}
	now := j.now().UTC()
	day := now.Format(time.DateOnly)

	var (
		errs    error
		emitted int
	)
	for _, material := range rows {
		sent, err := j.alert(ctx, material, day, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("material %s: %w", material.ID, err))
			continue
		}
		if sent {
			emitted++
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"low_stock_count": len(rows),
		"alerts_emitted":  emitted,
		"day":             day,
	})
	j.logg.Info(logCtx, "low stock scan complete")
	return errs
}

func (j *lowStockJob) alert(ctx context.Context, material models.Material, day string, now time.Time) (bool, error) {
	key := j.alerts.LowStockAlertKey(material.ID.String(), day)
	fresh, err := j.alerts.SetNX(ctx, key, now.Format(time.RFC3339), lowStockAlertTTL)
	if err != nil {
		return false, fmt.Errorf("claim alert key: %w", err)
	}
	if !fresh {
		return false, nil
	}

	err = j.db.WithTx(ctx, func(tx *gorm.DB) error {
		return j.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLowStockDetected,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   material.ID,
			Data: payloads.LowStockDetectedEvent{
				MaterialID: material.ID,
				Name:       material.Name,
				Stock:      material.StockQuantity.String(),
				Threshold:  material.LowStockThreshold.String(),
				DetectedAt: now,
			},
		})
	})
	if err != nil {
		// free the key so the next scan retries
		if delErr := j.alerts.Del(context.WithoutCancel(ctx), key); delErr != nil {
			err = multierr.Append(err, fmt.Errorf("release alert key: %w", delErr))
		}
		return false, err
	}
	return true, nil
}
