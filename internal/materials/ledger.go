package materials

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/stockledger"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

// Draw is a quantity of one material an operation intends to consume.
type Draw struct {
	MaterialID uuid.UUID
	Quantity   decimal.Decimal
}

// Shortage reports a material that cannot cover its draw.
type Shortage struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Name       string          `json:"name"`
	Unit       string          `json:"unit"`
	Required   decimal.Decimal `json:"required"`
	Available  decimal.Decimal `json:"available"`
}

// InsufficientMaterialsError carries the full shortage list in its details.
func InsufficientMaterialsError(shortages []Shortage) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientMaterials, "insufficient materials").
		WithDetails(map[string]any{"shortages": shortages})
}

// ShortagesFrom extracts the shortage list from an InsufficientMaterialsError.
func ShortagesFrom(err error) []Shortage {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientMaterials {
		return nil
	}
	details, ok := typed.Details().(map[string]any)
	if !ok {
		return nil
	}
	shortages, _ := details["shortages"].([]Shortage)
	return shortages
}

// Ledger pairs every material stock change with a movement row. Callers bind
// it to their transaction with WithTx.
type Ledger struct {
	materials Repository
	movements stockledger.Repository
}

func NewLedger(materials Repository, movements stockledger.Repository) *Ledger {
	return &Ledger{materials: materials, movements: movements}
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{
		materials: l.materials.WithTx(tx),
		movements: l.movements.WithTx(tx),
	}
}

// Merge sums draws per material, drops non-positive totals and sorts by
// material id so locks are always taken in the same order.
func Merge(draws []Draw) []Draw {
	totals := map[uuid.UUID]decimal.Decimal{}
	for _, d := range draws {
		totals[d.MaterialID] = totals[d.MaterialID].Add(d.Quantity)
	}
	out := make([]Draw, 0, len(totals))
	for id, qty := range totals {
		if !qty.IsPositive() {
			continue
		}
		out = append(out, Draw{MaterialID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MaterialID.String() < out[j].MaterialID.String()
	})
	return out
}

// Shortages reads current stock for every draw and lists those that fall short.
func (l *Ledger) Shortages(ctx context.Context, draws []Draw) ([]Shortage, error) {
	var shortages []Shortage
	for _, d := range Merge(draws) {
		material, err := l.materials.FindByID(ctx, d.MaterialID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found").
					WithDetails(map[string]any{"material_id": d.MaterialID})
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
		}
		if material.StockQuantity.LessThan(d.Quantity) {
			shortages = append(shortages, Shortage{
				MaterialID: material.ID,
				Name:       material.Name,
				Unit:       material.Unit.String(),
				Required:   d.Quantity,
				Available:  material.StockQuantity,
			})
		}
	}
	return shortages, nil
}

// Consume decrements each material and appends a negative movement for it.
// A lost conditional decrement aborts with CONCURRENCY_CONFLICT so the caller
// can roll back and retry.
func (l *Ledger) Consume(ctx context.Context, draws []Draw, entry stockledger.Entry) ([]Draw, error) {
	merged := Merge(draws)
	for _, d := range merged {
		ok, err := l.materials.DecrementStock(ctx, d.MaterialID, d.Quantity)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement material stock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConcurrencyConflict, "material stock changed during operation").
				WithDetails(map[string]any{"material_id": d.MaterialID})
		}
		if err := l.movements.Create(ctx, entry.MaterialMovement(d.MaterialID, d.Quantity.Neg())); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
		}
	}
	return merged, nil
}

// Credit adds stock to one material and appends a positive movement.
func (l *Ledger) Credit(ctx context.Context, materialID uuid.UUID, qty decimal.Decimal, entry stockledger.Entry) error {
	if err := l.materials.IncrementStock(ctx, materialID, qty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment material stock")
	}
	if err := l.movements.Create(ctx, entry.MaterialMovement(materialID, qty)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert stock movement")
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
