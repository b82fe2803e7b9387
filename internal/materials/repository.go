package materials

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-fulfillment/pkg/db/models"
)

// Repository owns material rows. Stock only moves through DecrementStock and
// IncrementStock, each paired with a ledger movement by the caller.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, material *models.Material) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Material, error)
	List(ctx context.Context) ([]models.Material, error)
	ListLowStock(ctx context.Context) ([]models.Material, error)
	DecrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (bool, error)
	IncrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error
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

func (r *repository) Create(ctx context.Context, material *models.Material) error {
	return r.db.WithContext(ctx).Create(material).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Material, error) {
	var material models.Material
	if err := r.db.WithContext(ctx).First(&material, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &material, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Material, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Material
	if err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) List(ctx context.Context) ([]models.Material, error) {
	var rows []models.Material
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListLowStock(ctx context.Context) ([]models.Material, error) {
	var rows []models.Material
	if err := r.db.WithContext(ctx).
		Where("stock_quantity <= low_stock_threshold").
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DecrementStock subtracts qty only while enough stock remains. A false
// result means another writer got there first.
func (r *repository) DecrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) (bool, error) {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE materials SET stock_quantity = stock_quantity - ?, updated_at = ? WHERE id = ? AND stock_quantity >= ?",
		qty, nowUTC(), id, qty,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) IncrementStock(ctx context.Context, id uuid.UUID, qty decimal.Decimal) error {
	res := r.db.WithContext(ctx).Exec(
		"UPDATE materials SET stock_quantity = stock_quantity + ?, updated_at = ? WHERE id = ?",
		qty, nowUTC(), id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
