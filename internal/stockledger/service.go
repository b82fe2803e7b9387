package stockledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/pagination"
)

// Entry describes who and what a movement is attributed to. Quantity and the
// stocked item are supplied by the caller per row.
type Entry struct {
	Type      enums.StockMovementType
	ProductID *uuid.UUID
	VariantID *uuid.UUID
	OrderID   *uuid.UUID
	Note      string
	UserID    *uuid.UUID
}

// MaterialMovement builds a movement row for a material quantity change.
func (e Entry) MaterialMovement(materialID uuid.UUID, quantity decimal.Decimal) *models.StockMovement {
	return &models.StockMovement{
		Type:       e.Type,
		MaterialID: &materialID,
		ProductID:  e.ProductID,
		VariantID:  e.VariantID,
		OrderID:    e.OrderID,
		Quantity:   quantity,
		Note:       e.Note,
		UserID:     e.UserID,
	}
}

// ProductMovement builds a movement row for finished goods.
func (e Entry) ProductMovement(quantity int) *models.StockMovement {
	return &models.StockMovement{
		Type:      e.Type,
		ProductID: e.ProductID,
		VariantID: e.VariantID,
		OrderID:   e.OrderID,
		Quantity:  decimal.NewFromInt(int64(quantity)),
		Note:      e.Note,
		UserID:    e.UserID,
	}
}

type materialReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error)
	List(ctx context.Context) ([]models.Material, error)
}

// Reconciliation compares a material's stored stock with its ledger.
type Reconciliation struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Name       string          `json:"name"`
	Stock      decimal.Decimal `json:"stock"`
	LedgerSum  decimal.Decimal `json:"ledger_sum"`
	Drift      decimal.Decimal `json:"drift"`
	Consistent bool            `json:"consistent"`
}

// MovementPage is one page of a material's movements.
type MovementPage struct {
	Movements  []models.StockMovement
	NextCursor string
}

type Service interface {
	ListByMaterial(ctx context.Context, materialID uuid.UUID, params pagination.Params) (*MovementPage, error)
	Reconcile(ctx context.Context, materialID uuid.UUID) (*Reconciliation, error)
	ReconcileAll(ctx context.Context) ([]Reconciliation, error)
}

type service struct {
	repo      Repository
	materials materialReader
}

func NewService(repo Repository, materials materialReader) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock ledger repository required")
	}
	if materials == nil {
		return nil, fmt.Errorf("material repository required")
	}
	return &service{repo: repo, materials: materials}, nil
}

func (s *service) ListByMaterial(ctx context.Context, materialID uuid.UUID, params pagination.Params) (*MovementPage, error) {
	if materialID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "material id is required")
	}
	cursor, err := pagination.Decode(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	limit := pagination.Clamp(params.Limit)

	rows, err := s.repo.ListByMaterial(ctx, materialID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock movements")
	}
	page := &MovementPage{}
	page.Movements, page.NextCursor = pagination.Trim(rows, limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, nil
}

func (s *service) Reconcile(ctx context.Context, materialID uuid.UUID) (*Reconciliation, error) {
	material, err := s.materials.FindByID(ctx, materialID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}
	return s.reconcile(ctx, *material)
}

func (s *service) ReconcileAll(ctx context.Context) ([]Reconciliation, error) {
	materials, err := s.materials.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list materials")
	}
	out := make([]Reconciliation, 0, len(materials))
	for _, material := range materials {
		rec, err := s.reconcile(ctx, material)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

func (s *service) reconcile(ctx context.Context, material models.Material) (*Reconciliation, error) {
	sum, err := s.repo.SumByMaterial(ctx, material.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum stock movements")
	}
	stock := material.StockQuantity.Round(4)
	drift := stock.Sub(sum)
	return &Reconciliation{
		MaterialID: material.ID,
		Name:       material.Name,
		Stock:      stock,
		LedgerSum:  sum,
		Drift:      drift,
		Consistent: drift.IsZero(),
	}, nil
}
