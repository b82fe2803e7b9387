package packaging

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

// Line is one order line as the engine sees it.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// Consumption is the packaging material an order draws.
type Consumption struct {
	MaterialID uuid.UUID       `json:"material_id"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// LinesFromItems adapts order items.
func LinesFromItems(items []models.OrderItem) []Line {
	out := make([]Line, 0, len(items))
	for _, item := range items {
		out = append(out, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// ComputeConsumption applies rules to lines.
//
// per_order rules fire once: quantity_single when at most one qualifying line
// exists, quantity_multiple otherwise. per_item rules fire per qualifying
// line: quantity_single for a line of one unit, quantity_multiple for more.
// Results are summed per material and sorted by material id.
func ComputeConsumption(rules []models.PackagingRule, lines []Line) []Consumption {
	totals := map[uuid.UUID]decimal.Decimal{}
	for _, rule := range rules {
		if !rule.IsActive {
			continue
		}
		qualifying := qualifyingLines(rule, lines)
		if len(qualifying) == 0 {
			continue
		}
		var qty decimal.Decimal
		switch rule.DeductionType {
		case enums.PackagingPerItem:
			for _, line := range qualifying {
				if line.Quantity == 1 {
					qty = qty.Add(rule.QuantitySingle)
				} else {
					qty = qty.Add(rule.QuantityMultiple)
				}
			}
		default:
			if len(qualifying) <= 1 {
				qty = rule.QuantitySingle
			} else {
				qty = rule.QuantityMultiple
			}
		}
		totals[rule.MaterialID] = totals[rule.MaterialID].Add(qty)
	}

	out := make([]Consumption, 0, len(totals))
	for id, qty := range totals {
		if !qty.IsPositive() {
			continue
		}
		out = append(out, Consumption{MaterialID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MaterialID.String() < out[j].MaterialID.String()
	})
	return out
}

func qualifyingLines(rule models.PackagingRule, lines []Line) []Line {
	var out []Line
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if rule.AppliesTo == enums.PackagingScopeSpecificProducts && !rule.ProductIDs.Contains(line.ProductID) {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Draws converts consumption into ledger draws.
func Draws(consumption []Consumption) []materials.Draw {
	out := make([]materials.Draw, 0, len(consumption))
	for _, c := range consumption {
		out = append(out, materials.Draw{MaterialID: c.MaterialID, Quantity: c.Quantity})
	}
	return out
}

// Engine loads the active rules and computes an order's packaging needs.
type Engine struct {
	repo Repository
}

func NewEngine(repo Repository) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("packaging rule repository required")
	}
	return &Engine{repo: repo}, nil
}

func (e *Engine) WithTx(tx *gorm.DB) *Engine {
	return &Engine{repo: e.repo.WithTx(tx)}
}

func (e *Engine) Compute(ctx context.Context, lines []Line) ([]Consumption, error) {
	rules, err := e.repo.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load packaging rules")
	}
	return ComputeConsumption(rules, lines), nil
}
