package bom

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/internal/products"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

type ResolveInput struct {
	ProductID uuid.UUID
	VariantID *uuid.UUID
	Quantity  int
}

// Requirement is the total amount of one material needed for a run.
type Requirement struct {
	MaterialID        uuid.UUID       `json:"material_id"`
	Name              string          `json:"name"`
	Unit              string          `json:"unit"`
	RequiredQuantity  decimal.Decimal `json:"required_quantity"`
	AvailableQuantity decimal.Decimal `json:"available_quantity"`
}

// Sufficient reports whether current stock covers the requirement.
func (r Requirement) Sufficient() bool {
	return r.AvailableQuantity.GreaterThanOrEqual(r.RequiredQuantity)
}

// Resolver maps a product or variant to the materials a production run consumes.
type Resolver struct {
	products  products.Repository
	materials materials.Repository
}

func NewResolver(productRepo products.Repository, materialRepo materials.Repository) (*Resolver, error) {
	if productRepo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if materialRepo == nil {
		return nil, fmt.Errorf("material repository required")
	}
	return &Resolver{products: productRepo, materials: materialRepo}, nil
}

func (r *Resolver) WithTx(tx *gorm.DB) *Resolver {
	return &Resolver{
		products:  r.products.WithTx(tx),
		materials: r.materials.WithTx(tx),
	}
}

// Resolve returns one requirement per material, sorted by material id. A
// variant with its own lines replaces the product's lines; a variant without
// lines inherits them.
func (r *Resolver) Resolve(ctx context.Context, input ResolveInput) ([]Requirement, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be greater than zero")
	}

	if _, err := r.products.FindByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	lines, err := r.lines(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product has no bill of materials")
	}

	qty := decimal.NewFromInt(int64(input.Quantity))
	totals := map[uuid.UUID]decimal.Decimal{}
	for _, line := range lines {
		totals[line.MaterialID] = totals[line.MaterialID].Add(line.QuantityPerUnit.Mul(qty))
	}

	ids := make([]uuid.UUID, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	rows, err := r.materials.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load materials")
	}
	byID := make(map[uuid.UUID]models.Material, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}

	reqs := make([]Requirement, 0, len(totals))
	for id, required := range totals {
		material, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "material not found").
				WithDetails(map[string]any{"material_id": id})
		}
		reqs = append(reqs, Requirement{
			MaterialID:        id,
			Name:              material.Name,
			Unit:              material.Unit.String(),
			RequiredQuantity:  required,
			AvailableQuantity: material.StockQuantity,
		})
	}
	sort.Slice(reqs, func(i, j int) bool {
		return reqs[i].MaterialID.String() < reqs[j].MaterialID.String()
	})
	return reqs, nil
}

func (r *Resolver) lines(ctx context.Context, input ResolveInput) ([]models.BOMLine, error) {
	if input.VariantID != nil {
		variant, err := r.products.FindVariant(ctx, *input.VariantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
		}
		if variant.ProductID != input.ProductID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant does not belong to product")
		}
		lines, err := r.products.FindVariantBOMLines(ctx, variant.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant bill of materials")
		}
		if len(lines) > 0 {
			return lines, nil
		}
	}
	lines, err := r.products.FindBOMLines(ctx, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load bill of materials")
	}
	return lines, nil
}

// Draws converts requirements into ledger draws.
func Draws(reqs []Requirement) []materials.Draw {
	out := make([]materials.Draw, 0, len(reqs))
	for _, req := range reqs {
		out = append(out, materials.Draw{MaterialID: req.MaterialID, Quantity: req.RequiredQuantity})
	}
	return out
}

// Shortages lists the requirements current stock cannot cover.
func Shortages(reqs []Requirement) []materials.Shortage {
	var out []materials.Shortage
	for _, req := range reqs {
		if req.Sufficient() {
			continue
		}
		out = append(out, materials.Shortage{
			MaterialID: req.MaterialID,
			Name:       req.Name,
			Unit:       req.Unit,
			Required:   req.RequiredQuantity,
			Available:  req.AvailableQuantity,
		})
	}
	return out
}
