package packaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/internal/materials"
	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-fulfillment/pkg/db/types"
	"github.com/angelmondragon/storefront-fulfillment/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
)

// Service manages packaging rules for admins.
type Service interface {
	Create(ctx context.Context, input RuleInput) (*models.PackagingRule, error)
	Update(ctx context.Context, id uuid.UUID, input RuleInput) (*models.PackagingRule, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.PackagingRule, error)
	List(ctx context.Context) ([]models.PackagingRule, error)
}

// RuleInput is the full desired state of a rule.
type RuleInput struct {
	Name             string
	MaterialID       uuid.UUID
	DeductionType    enums.PackagingDeductionType
	AppliesTo        enums.PackagingScope
	ProductIDs       []uuid.UUID
	QuantitySingle   decimal.Decimal
	QuantityMultiple decimal.Decimal
	IsActive         bool
}

type service struct {
	repo      Repository
	materials materials.Repository
}

func NewService(repo Repository, materialRepo materials.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("packaging rule repository required")
	}
	if materialRepo == nil {
		return nil, fmt.Errorf("material repository required")
	}
	return &service{repo: repo, materials: materialRepo}, nil
}

func (s *service) Create(ctx context.Context, input RuleInput) (*models.PackagingRule, error) {
	rule := &models.PackagingRule{}
	if err := s.apply(ctx, rule, input); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert packaging rule")
	}
	return rule, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input RuleInput) (*models.PackagingRule, error) {
	rule, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, rule, input); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, rule); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update packaging rule")
	}
	return rule, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete packaging rule")
	}
	if !deleted {
		return pkgerrors.New(pkgerrors.CodeNotFound, "packaging rule not found")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PackagingRule, error) {
	rule, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "packaging rule not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load packaging rule")
	}
	return rule, nil
}

func (s *service) List(ctx context.Context) ([]models.PackagingRule, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list packaging rules")
	}
	return rules, nil
}

func (s *service) apply(ctx context.Context, rule *models.PackagingRule, input RuleInput) error {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if !input.DeductionType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid deduction_type")
	}
	if !input.AppliesTo.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid applies_to")
	}
	if input.QuantitySingle.IsNegative() || input.QuantityMultiple.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantities cannot be negative")
	}
	if input.AppliesTo == enums.PackagingScopeSpecificProducts && len(input.ProductIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "product_ids required for specific_products scope")
	}
	if input.MaterialID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "material_id is required")
	}
	if _, err := s.materials.FindByID(ctx, input.MaterialID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "material not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load material")
	}

	rule.Name = name
	rule.MaterialID = input.MaterialID
	rule.DeductionType = input.DeductionType
	rule.AppliesTo = input.AppliesTo
	rule.ProductIDs = dbtypes.UUIDArray{}
	if input.AppliesTo == enums.PackagingScopeSpecificProducts {
		rule.ProductIDs = append(rule.ProductIDs, input.ProductIDs...)
	}
	rule.QuantitySingle = input.QuantitySingle
	rule.QuantityMultiple = input.QuantityMultiple
	rule.IsActive = input.IsActive
	return nil
}
