package stockledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
	"github.com/angelmondragon/storefront-fulfillment/pkg/pagination"
)

// Repository appends and reads stock movements. There is no update or delete.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, movement *models.StockMovement) error
	ListByMaterial(ctx context.Context, materialID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error)
	SumByMaterial(ctx context.Context, materialID uuid.UUID) (decimal.Decimal, error)
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

func (r *repository) Create(ctx context.Context, movement *models.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// ListByMaterial pages newest first; cursor marks the last row of the previous page.
func (r *repository) ListByMaterial(ctx context.Context, materialID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.StockMovement, error) {
	query := r.db.WithContext(ctx).Where("material_id = ?", materialID)
	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID,
		)
	}
	var movements []models.StockMovement
	if err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]models.StockMovement, error) {
	var movements []models.StockMovement
	if err := r.db.WithContext(ctx).
		Where("product_id = ? AND material_id IS NULL", productID).
		Order("created_at ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

// SumByMaterial adds the signed quantities in Go so SQLite's float storage
// does not leak rounding into reconciliation.
func (r *repository) SumByMaterial(ctx context.Context, materialID uuid.UUID) (decimal.Decimal, error) {
	var quantities []decimal.Decimal
	if err := r.db.WithContext(ctx).
		Model(&models.StockMovement{}).
		Where("material_id = ?", materialID).
		Pluck("quantity", &quantities).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, q := range quantities {
		total = total.Add(q)
	}
	return total.Round(4), nil
}
