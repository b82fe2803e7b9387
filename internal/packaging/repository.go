package packaging

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, rule *models.PackagingRule) error
	Save(ctx context.Context, rule *models.PackagingRule) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.PackagingRule, error)
	List(ctx context.Context) ([]models.PackagingRule, error)
	ListActive(ctx context.Context) ([]models.PackagingRule, error)
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

func (r *repository) Create(ctx context.Context, rule *models.PackagingRule) error {
	return r.db.WithContext(ctx).Create(rule).Error
}

func (r *repository) Save(ctx context.Context, rule *models.PackagingRule) error {
	return r.db.WithContext(ctx).Save(rule).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.PackagingRule{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PackagingRule, error) {
	var rule models.PackagingRule
	if err := r.db.WithContext(ctx).First(&rule, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repository) List(ctx context.Context) ([]models.PackagingRule, error) {
	var rules []models.PackagingRule
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.PackagingRule, error) {
	var rules []models.PackagingRule
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("created_at ASC").
		Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}
