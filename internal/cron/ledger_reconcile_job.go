package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

type ledgerReconciler interface {
	ReconcileAll(ctx context.Context) ([]stockledger.Reconciliation, error)
}

// NewLedgerReconcileJob compares every material's stock with the sum of its
// movements. Each drifting material contributes one error to the result.
func NewLedgerReconcileJob(logg *logger.Logger, ledger ledgerReconciler) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &ledgerReconcileJob{logg: logg, ledger: ledger}, nil
}

type ledgerReconcileJob struct {
	logg   *logger.Logger
	ledger ledgerReconciler
}

func (j *ledgerReconcileJob) Name() string { return "ledger-reconcile" }

func (j *ledgerReconcileJob) Run(ctx context.Context) error {
	results, err := j.ledger.ReconcileAll(ctx)
	if err != nil {
		return fmt.Errorf("reconcile ledger: %w", err)
	}
	var drift error
	for _, rec := range results {
		if rec.Consistent {
			continue
		}
		warnCtx := j.logg.WithFields(ctx, map[string]any{
			"material_id": rec.MaterialID.String(),
			"stock":       rec.Stock.String(),
			"ledger_sum":  rec.LedgerSum.String(),
			"drift":       rec.Drift.String(),
		})
		j.logg.Warn(warnCtx, "ledger drift detected")
		drift = multierr.Append(drift, fmt.Errorf("material %s (%s) drifted by %s", rec.Name, rec.MaterialID, rec.Drift))
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"materials_checked": len(results),
		"mismatches":        len(multierr.Errors(drift)),
	})
	j.logg.Info(logCtx, "ledger reconciliation complete")
	return drift
}
