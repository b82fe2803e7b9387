package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

// Repository reads catalog rows and moves finished-goods stock.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error)
	FindBOMLines(ctx context.Context, productID uuid.UUID) ([]models.BOMLine, error)
	FindVariantBOMLines(ctx context.Context, variantID uuid.UUID) ([]models.BOMLine, error)
	IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error
	IncrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error
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

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindVariant(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error) {
	var variant models.ProductVariant
	if err := r.db.WithContext(ctx).First(&variant, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &variant, nil
}

func (r *repository) FindVariantsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.ProductVariant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.ProductVariant
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindBOMLines returns the product-level bill of materials.
func (r *repository) FindBOMLines(ctx context.Context, productID uuid.UUID) ([]models.BOMLine, error) {
	var lines []models.BOMLine
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND variant_id IS NULL", productID).
		Order("material_id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) FindVariantBOMLines(ctx context.Context, variantID uuid.UUID) ([]models.BOMLine, error) {
	var lines []models.BOMLine
	if err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		Order("material_id ASC").
		Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *repository) IncrementStock(ctx context.Context, productID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) IncrementVariantStock(ctx context.Context, variantID uuid.UUID, qty int) error {
	res := r.db.WithContext(ctx).
		Model(&models.ProductVariant{}).
		Where("id = ?", variantID).
		UpdateColumn("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
