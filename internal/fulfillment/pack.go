package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/packaging"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

const (
	maxPackBatch = 200
	packNote     = "order packed"
)

type PackInput struct {
	OrderIDs    []uuid.UUID
	PerformedBy *uuid.UUID
}

// PackedOrder describes a committed pack.
type PackedOrder struct {
	OrderID  uuid.UUID     `json:"order_id"`
	Consumed []Consumption `json:"consumed"`
	PackedAt time.Time     `json:"packed_at"`
	Attempts int           `json:"attempts"`
}

// PackResult is the outcome for one order of a batch.
type PackResult struct {
	OrderID   uuid.UUID            `json:"order_id"`
	Success   bool                 `json:"success"`
	Consumed  []Consumption        `json:"consumed,omitempty"`
	ErrorCode pkgerrors.Code       `json:"error_code,omitempty"`
	Error     string               `json:"error,omitempty"`
	Shortages []materials.Shortage `json:"shortages,omitempty"`
}

// PackSummary lists results in request order.
type PackSummary struct {
	Results   []PackResult `json:"results"`
	Succeeded int          `json:"succeeded"`
	Failed    int          `json:"failed"`
	Summary   string       `json:"summary"`
}

// Pack packs each order in its own transaction. Orders are independent:
// one failing never rolls back another.
func (s *service) Pack(ctx context.Context, input PackInput) (*PackSummary, error) {
	if len(input.OrderIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order_ids required")
	}
	if len(input.OrderIDs) > maxPackBatch {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d orders per batch", maxPackBatch))
	}
	s.metrics.ObserveBatchSize(len(input.OrderIDs))

	results := make([]PackResult, len(input.OrderIDs))
	var g errgroup.Group
	g.SetLimit(s.cfg.PackConcurrency)
	for i, orderID := range input.OrderIDs {
		g.Go(func() error {
			results[i] = s.packItem(ctx, orderID, input.PerformedBy)
			return nil
		})
	}
	_ = g.Wait()

	summary := &PackSummary{Results: results}
	for _, r := range results {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.Summary = fmt.Sprintf("%d/%d succeeded", summary.Succeeded, len(results))

	s.logg.Info(s.logg.WithFields(s.logg.WithOperation(ctx, opPack), map[string]any{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}), "pack.batch_completed")
	return summary, nil
}

func (s *service) packItem(ctx context.Context, orderID uuid.UUID, performedBy *uuid.UUID) PackResult {
	itemCtx := ctx
	if s.cfg.PackItemTimeout > 0 {
		var cancel context.CancelFunc
		itemCtx, cancel = context.WithTimeout(ctx, s.cfg.PackItemTimeout)
		defer cancel()
	}

	packed, err := s.PackOrder(itemCtx, orderID, performedBy)
	if err == nil {
		return PackResult{OrderID: orderID, Success: true, Consumed: packed.Consumed}
	}

	result := PackResult{OrderID: orderID, Error: err.Error()}
	if errors.Is(err, context.DeadlineExceeded) {
		result.ErrorCode = pkgerrors.CodeDependency
		result.Error = "pack timed out"
	} else if typed := pkgerrors.As(err); typed != nil {
		result.ErrorCode = typed.Code()
		result.Error = typed.Message()
	}
	result.Shortages = materials.ShortagesFrom(err)
	return result
}

// PackOrder consumes an order's packaging materials and marks it packed.
func (s *service) PackOrder(ctx context.Context, orderID uuid.UUID, performedBy *uuid.UUID) (*PackedOrder, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	started := time.Now()
	logCtx := s.logg.WithOrderID(s.logg.WithOperation(ctx, opPack), orderID.String())

	var packed *PackedOrder
	attempts, err := s.withRetry(ctx, opPack, func(ctx context.Context) error {
		var err error
		packed, err = s.packOnce(ctx, orderID, performedBy)
		return err
	})
	s.metrics.ObserveOperation(opPack, outcomeOf(err), time.Since(started))
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "pack.order_failed")
		return nil, err
	}
	packed.Attempts = attempts
	s.logg.Info(s.logg.WithField(logCtx, "attempts", attempts), "pack.order_committed")
	return packed, nil
}

func (s *service) packOnce(ctx context.Context, orderID uuid.UUID, performedBy *uuid.UUID) (*PackedOrder, error) {
	var packed *PackedOrder
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		order, err := orderRepo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Packed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already packed")
		}
		if !order.Status.IsPackable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order in status %s cannot be packed", order.Status))
		}

		consumption, err := s.packaging.WithTx(tx).Compute(ctx, packaging.LinesFromItems(order.Items))
		if err != nil {
			return err
		}
		draws := packaging.Draws(consumption)
		ledger := s.ledger.WithTx(tx)
		shortages, err := ledger.Shortages(ctx, draws)
		if err != nil {
			return err
		}
		if len(shortages) > 0 {
			return materials.InsufficientMaterialsError(shortages)
		}

		entry := stockledger.Entry{
			Type:    enums.StockMovementPackaging,
			OrderID: &order.ID,
			Note:    packNote,
			UserID:  performedBy,
		}
		if _, err := ledger.Consume(ctx, draws, entry); err != nil {
			return err
		}

		now := time.Now().UTC()
		ok, err := orderRepo.SetPacked(ctx, order.ID, now)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order packed")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "order changed during packing")
		}

		consumed, err := s.describe(ctx, tx, consumption)
		if err != nil {
			return err
		}
		packed = &PackedOrder{OrderID: order.ID, Consumed: consumed, PackedAt: now}

		events := make([]payloads.MaterialConsumption, 0, len(consumed))
		for _, c := range consumed {
			events = append(events, payloads.MaterialConsumption{
				MaterialID: c.MaterialID,
				Quantity:   c.Quantity.String(),
				Unit:       c.Unit,
			})
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPacked,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         outbox.Actor(performedBy, outbox.SourceAdmin),
			Data: payloads.OrderPackedEvent{
				OrderID:  order.ID,
				Consumed: events,
				PackedAt: now,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "pack order")
	}
	return packed, nil
}

func (s *service) describe(ctx context.Context, tx *gorm.DB, consumption []packaging.Consumption) ([]Consumption, error) {
	if len(consumption) == 0 {
		return []Consumption{}, nil
	}
	ids := make([]uuid.UUID, 0, len(consumption))
	for _, c := range consumption {
		ids = append(ids, c.MaterialID)
	}
	rows, err := s.materials.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load packaging materials")
	}
	byID := make(map[uuid.UUID]models.Material, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	out := make([]Consumption, 0, len(consumption))
	for _, c := range consumption {
		m := byID[c.MaterialID]
		out = append(out, Consumption{
			MaterialID: c.MaterialID,
			Name:       m.Name,
			Unit:       m.Unit.String(),
			Quantity:   c.Quantity,
		})
	}
	return out, nil
}
