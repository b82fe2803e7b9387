package materials

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox"
	"github.com/angelmondragon/storefront-fulfillment/pkg/outbox/payloads"
)

const openingStockNote = "opening stock"

// Service exposes material administration. Stock changes always write a
// matching ADJUSTMENT movement.
type Service interface {
	Create(ctx context.Context, input CreateMaterialInput) (*models.Material, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Material, error)
	List(ctx context.Context) ([]models.Material, error)
	LowStock(ctx context.Context) ([]models.Material, error)
	Adjust(ctx context.Context, input AdjustInput) (*models.Material, error)
}

type CreateMaterialInput struct {
	Name              string
	Unit              enums.MaterialUnit
	PricePerUnitCents int
	OpeningStock      decimal.Decimal
	LowStockThreshold decimal.Decimal
	SupplierID        *uuid.UUID
	PerformedBy       *uuid.UUID
}

type AdjustInput struct {
	MaterialID  uuid.UUID
	Delta       decimal.Decimal
	Note        string
	PerformedBy *uuid.UUID
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	db     txRunner
	repo   Repository
	ledger *Ledger
	outbox outbox.Emitter
	logg   *logger.Logger
}

func NewService(db txRunner, repo Repository, ledger *Ledger, emitter outbox.Emitter, logg *logger.Logger) (Service, error) {
	if db == nil {
		return nil, fmt.Errorf("db client required")
	}
	if repo == nil {
		return nil, fmt.Errorf("material repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{db: db, repo: repo, ledger: ledger, outbox: emitter, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input CreateMaterialInput) (*models.Material, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.Unit.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid unit")
	}
	if input.PricePerUnitCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price_per_unit_cents cannot be negative")
	}
	if input.OpeningStock.IsNegative() || input.LowStockThreshold.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock quantities cannot be negative")
	}

	material := &models.Material{
		Name:              name,
		Unit:              input.Unit,
		PricePerUnitCents: input.PricePerUnitCents,
		StockQuantity:     decimal.Zero,
		LowStockThreshold: input.LowStockThreshold,
		SupplierID:        input.SupplierID,
	}
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, material); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "db: insert material")
		}
		if !input.OpeningStock.IsPositive() {
			return nil
		}
		entry := stockledger.Entry{
			Type:   enums.StockMovementAdjustment,
			Note:   openingStockNote,
			UserID: input.PerformedBy,
		}
		if err := s.ledger.WithTx(tx).Credit(ctx, material.ID, input.OpeningStock, entry); err != nil {
			return err
		}
		material.StockQuantity = input.OpeningStock
		return nil
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create material")
	}
	return material, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	material, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	return material, nil
}

func (s *service) List(ctx context.Context) ([]models.Material, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}
	return rows, nil
}

func (s *service) LowStock(ctx context.Context) ([]models.Material, error) {
	rows, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock materials")
	}
	return rows, nil
}

// Adjust applies a signed manual correction. Negative corrections use the same
// conditional decrement as production so stock never goes below zero.
func (s *service) Adjust(ctx context.Context, input AdjustInput) (*models.Material, error) {
	if input.MaterialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id is required")
	}
	if input.Delta.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delta must be non-zero")
	}
	note := strings.TrimSpace(input.Note)
	if note == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "note is required")
	}

	var updated *models.Material
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		entry := stockledger.Entry{
			Type:   enums.StockMovementAdjustment,
			Note:   note,
			UserID: input.PerformedBy,
		}
		if input.Delta.IsPositive() {
			if err := ledger.Credit(ctx, input.MaterialID, input.Delta, entry); err != nil {
				return err
			}
		} else {
			draw := []Draw{{MaterialID: input.MaterialID, Quantity: input.Delta.Neg()}}
			shortages, err := ledger.Shortages(ctx, draw)
			if err != nil {
				return err
			}
			if len(shortages) > 0 {
				return InsufficientMaterialsError(shortages)
			}
			if _, err := ledger.Consume(ctx, draw, entry); err != nil {
				return err
			}
		}

		material, err := s.repo.WithTx(tx).FindByID(ctx, input.MaterialID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload material")
		}
		updated = material

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStockAdjusted,
			AggregateType: enums.AggregateMaterial,
			AggregateID:   material.ID,
			Actor:         outbox.Actor(input.PerformedBy, outbox.SourceAdmin),
			Data: payloads.StockAdjustedEvent{
				MaterialID: material.ID,
				Delta:      input.Delta.String(),
				StockAfter: material.StockQuantity.String(),
				Note:       note,
				AdjustedAt: nowUTC(),
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "adjust material stock")
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"material_id": updated.ID.String(),
		"delta":       input.Delta.String(),
		"stock_after": updated.StockQuantity.String(),
	})
	s.logg.Info(logCtx, "material.adjusted")
	return updated, nil
}
