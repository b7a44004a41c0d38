package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID, soft-deleted rows included
func (r *GormProductRepository) FindByID(ctx context.Context, id int64) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find product", func() error {
			return shared.NotFoundf("Product %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// FindActiveByID finds an active, non-deleted product
func (r *GormProductRepository) FindActiveByID(ctx context.Context, id int64) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ? AND deleted_at IS NULL", id, true).
		First(&m).Error; err != nil {
		return nil, translate(err, "find active product", func() error {
			return shared.NotFoundf("Product %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// FindByCode finds a product by its code
func (r *GormProductRepository) FindByCode(ctx context.Context, code string) (*catalog.Product, error) {
	var m models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("code = ?", strings.ToUpper(code)).
		First(&m).Error; err != nil {
		return nil, translate(err, "find product by code", func() error {
			return shared.NotFoundf("Product %s not found", code)
		})
	}
	return m.ToDomain(), nil
}

// FindByIDs finds multiple products by their IDs
func (r *GormProductRepository) FindByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	products := make([]catalog.Product, len(rows))
	for i := range rows {
		products[i] = *rows[i].ToDomain()
	}
	return products, nil
}

// Save inserts a new product or updates an existing one under its version token
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	m := models.ProductModelFromDomain(product)
	if product.ID == 0 {
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return fmt.Errorf("create product: %w", err)
		}
		product.ID = m.ID
		return nil
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ? AND version = ?", product.ID, product.Version).
		Updates(map[string]any{
			"name":       product.Name,
			"price":      product.Price,
			"stock":      product.Stock,
			"is_active":  product.IsActive,
			"deleted_at": product.DeletedAt,
			"version":    product.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("update product: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConflict, fmt.Sprintf("Product %d was modified by another transaction", product.ID))
	}
	product.Version++
	product.UpdatedAt = now
	return nil
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
