package fulfillment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/bom"
	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

type ProduceInput struct {
	ProductID   uuid.UUID
	VariantID   *uuid.UUID
	Quantity    int
	PerformedBy *uuid.UUID
	Note        string
}

// Consumption is one material drawn down by an operation.
type Consumption struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Quantity   decimal.Decimal `json:"quantity"`
}

type ProductionResult struct {
	ProductID  uuid.UUID     `json:"product_id"`
	VariantID  *uuid.UUID    `json:"variant_id,omitempty"`
	Quantity   int           `json:"quantity"`
	Consumed   []Consumption `json:"consumed"`
	Attempts   int           `json:"attempts"`
	RecordedAt time.Time     `json:"recorded_at"`
}

// Produce converts raw materials into finished units. Either every material
// is decremented and the product credited, or nothing changes.
func (s *service) Produce(ctx context.Context, input ProduceInput) (*ProductionResult, error) {
	started := time.Now()
	logCtx := s.logg.WithOperation(ctx, opProduce)
	logCtx = s.logg.WithField(logCtx, "product_id", input.ProductID.String())

	var result *ProductionResult
	attempts, err := s.withRetry(ctx, opProduce, func(ctx context.Context) error {
		var err error
		result, err = s.produceOnce(ctx, input)
		return err
	})
	s.metrics.ObserveOperation(opProduce, outcomeOf(err), time.Since(started))
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeInsufficientMaterials) {
			s.logg.Warn(s.logg.WithField(logCtx, "shortages", len(materials.ShortagesFrom(err))), "production.insufficient_materials")
		} else {
			s.logg.Error(logCtx, "production.failed", err)
		}
		return nil, err
	}

	result.Attempts = attempts
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"quantity": input.Quantity,
		"attempts": attempts,
	}), "production.committed")
	return result, nil
}

func (s *service) produceOnce(ctx context.Context, input ProduceInput) (*ProductionResult, error) {
	var result *ProductionResult
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		reqs, err := s.resolver.WithTx(tx).Resolve(ctx, bom.ResolveInput{
			ProductID: input.ProductID,
			VariantID: input.VariantID,
			Quantity:  input.Quantity,
		})
		if err != nil {
			return err
		}
		if shortages := bom.Shortages(reqs); len(shortages) > 0 {
			return materials.InsufficientMaterialsError(shortages)
		}

		entry := stockledger.Entry{
			Type:      enums.StockMovementProduction,
			ProductID: &input.ProductID,
			VariantID: input.VariantID,
			Note:      strings.TrimSpace(input.Note),
			UserID:    input.PerformedBy,
		}
		if _, err := s.ledger.WithTx(tx).Consume(ctx, bom.Draws(reqs), entry); err != nil {
			return err
		}

		productRepo := s.products.WithTx(tx)
		if input.VariantID != nil {
			err = productRepo.IncrementVariantStock(ctx, *input.VariantID, input.Quantity)
		} else {
			err = productRepo.IncrementStock(ctx, input.ProductID, input.Quantity)
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment product stock")
		}
		if err := s.movements.WithTx(tx).Create(ctx, entry.ProductMovement(input.Quantity)); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert production movement")
		}

		now := time.Now().UTC()
		consumed := make([]Consumption, 0, len(reqs))
		events := make([]payloads.MaterialConsumption, 0, len(reqs))
		for _, req := range reqs {
			consumed = append(consumed, Consumption{
				MaterialID: req.MaterialID,
				Name:       req.Name,
				Unit:       req.Unit,
				Quantity:   req.RequiredQuantity,
			})
			events = append(events, payloads.MaterialConsumption{
				MaterialID: req.MaterialID,
				Quantity:   req.RequiredQuantity.String(),
				Unit:       req.Unit,
			})
		}
		result = &ProductionResult{
			ProductID:  input.ProductID,
			VariantID:  input.VariantID,
			Quantity:   input.Quantity,
			Consumed:   consumed,
			RecordedAt: now,
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProductionRecorded,
			AggregateType: enums.AggregateProduct,
			AggregateID:   input.ProductID,
			Actor:         outbox.Actor(input.PerformedBy, outbox.SourceAdmin),
			Data: payloads.ProductionRecordedEvent{
				ProductID:  input.ProductID,
				VariantID:  input.VariantID,
				Quantity:   input.Quantity,
				Consumed:   events,
				RecordedAt: now,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "produce")
	}
	return result, nil
}
