package promotions

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, promo *models.PromoCode) error
	Save(ctx context.Context, promo *models.PromoCode) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error)
	FindByCode(ctx context.Context, code string) (*models.PromoCode, error)
	List(ctx context.Context) ([]models.PromoCode, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, promo *models.PromoCode) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *repository) Save(ctx context.Context, promo *models.PromoCode) error {
	return r.db.WithContext(ctx).Save(promo).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).First(&promo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// FindByCode matches regardless of case.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).First(&promo, "code = ?", NormalizeCode(code)).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) List(ctx context.Context) ([]models.PromoCode, error) {
	var rows []models.PromoCode
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
