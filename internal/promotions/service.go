package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	dbtypes "github.com/angelmondragon/storefront-fulfillment/pkg/db/types"
	pkgerrors "github.com/angelmondragon/storefront-fulfillment/pkg/errors"
	"github.com/angelmondragon/storefront-fulfillment/pkg/logger"
)

// Service is the admin surface for promo codes.
type Service interface {
	Create(ctx context.Context, input PromoInput) (*models.PromoCode, error)
	Update(ctx context.Context, id uuid.UUID, input PromoInput) (*models.PromoCode, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
}

type PromoInput struct {
	Code                 string
	PercentageOff        decimal.Decimal
	IsBogo               bool
	BogoBuyCount         int
	BogoGetCount         int
	AllCart              bool
	EligibleProductSlugs []string
	EligibleCustomerIDs  []uuid.UUID
	ValidFrom            *time.Time
	ValidUntil           *time.Time
	IsActive             bool
}

type service struct {
	repo Repository
	logg *logger.Logger
}

func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promo code repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, input PromoInput) (*models.PromoCode, error) {
	promo := &models.PromoCode{}
	if err := apply(promo, input); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, promo.Code, uuid.Nil); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "promo code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert promo code")
	}
	s.logg.Info(s.logg.WithField(ctx, "promo_code", promo.Code), "promo.created")
	return promo, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input PromoInput) (*models.PromoCode, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(promo, input); err != nil {
		return nil, err
	}
	if err := s.ensureUnique(ctx, promo.Code, promo.ID); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, promo); err != nil {
		if pkgerrors.IsUniqueViolation(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "promo code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promo code")
	}
	return promo, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	promo, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !promo.IsActive {
		return promo, nil
	}
	promo.IsActive = false
	if err := s.repo.Save(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate promo code")
	}
	s.logg.Info(s.logg.WithField(ctx, "promo_code", promo.Code), "promo.deactivated")
	return promo, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	return promo, nil
}

func (s *service) List(ctx context.Context) ([]models.PromoCode, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo codes")
	}
	return rows, nil
}

func (s *service) ensureUnique(ctx context.Context, code string, self uuid.UUID) error {
	existing, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo code")
	}
	if existing.ID != self {
		return pkgerrors.New(pkgerrors.CodeConflict, "promo code already exists")
	}
	return nil
}

func apply(promo *models.PromoCode, input PromoInput) error {
	code := NormalizeCode(input.Code)
	if code == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	if input.IsBogo {
		if input.BogoBuyCount < 1 || input.BogoGetCount < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "bogo buy and get counts must be at least 1")
		}
		if !input.PercentageOff.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "bogo codes cannot carry a percentage")
		}
	} else {
		if !input.PercentageOff.IsPositive() || input.PercentageOff.GreaterThan(hundred) {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage_off must be in (0, 100]")
		}
		if input.BogoBuyCount != 0 || input.BogoGetCount != 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "percentage codes cannot carry bogo counts")
		}
	}
	if input.ValidFrom != nil && input.ValidUntil != nil && !input.ValidFrom.Before(*input.ValidUntil) {
		return pkgerrors.New(pkgerrors.CodeValidation, "valid_from must be before valid_until")
	}

	slugs := dbtypes.StringArray{}
	for _, slug := range input.EligibleProductSlugs {
		if slug = strings.TrimSpace(slug); slug != "" {
			slugs = append(slugs, slug)
		}
	}

	promo.Code = code
	promo.PercentageOff = input.PercentageOff
	promo.IsBogo = input.IsBogo
	promo.BogoBuyCount = input.BogoBuyCount
	promo.BogoGetCount = input.BogoGetCount
	promo.AllCart = input.AllCart
	promo.EligibleProductSlugs = slugs
	promo.EligibleCustomerIDs = append(dbtypes.UUIDArray{}, input.EligibleCustomerIDs...)
	promo.ValidFrom = utcPtr(input.ValidFrom)
	promo.ValidUntil = utcPtr(input.ValidUntil)
	promo.IsActive = input.IsActive
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
