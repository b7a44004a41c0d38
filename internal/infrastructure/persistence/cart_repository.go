package persistence

import (
	"context"
	"fmt"

	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCartRepository implements CartRepository using GORM
type GormCartRepository struct {
	db *gorm.DB
}

// NewGormCartRepository creates a new GormCartRepository
func NewGormCartRepository(db *gorm.DB) *GormCartRepository {
	return &GormCartRepository{db: db}
}

// FindByUser returns the user's cart lines in insertion order
func (r *GormCartRepository) FindByUser(ctx context.Context, userID int64) ([]cart.CartItem, error) {
	var rows []models.CartItemModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC, product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	items := make([]cart.CartItem, len(rows))
	for i := range rows {
		items[i] = *rows[i].ToDomain()
	}
	return items, nil
}

// FindItem returns one cart line
func (r *GormCartRepository) FindItem(ctx context.Context, userID, productID int64) (*cart.CartItem, error) {
	var m models.CartItemModel
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		First(&m).Error; err != nil {
		return nil, translate(err, "find cart item", func() error {
			return shared.NotFoundf("Product %d is not in the cart", productID)
		})
	}
	return m.ToDomain(), nil
}

// Save creates or updates a cart line
func (r *GormCartRepository) Save(ctx context.Context, item *cart.CartItem) error {
	m := &models.CartItemModel{}
	m.FromDomain(item)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("save cart item: %w", err)
	}
	return nil
}

// Delete removes one cart line
func (r *GormCartRepository) Delete(ctx context.Context, userID, productID int64) error {
	result := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ?", userID, productID).
		Delete(&models.CartItemModel{})
	if result.Error != nil {
		return fmt.Errorf("delete cart item: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NotFoundf("Product %d is not in the cart", productID)
	}
	return nil
}

// Clear removes every line of the user's cart
func (r *GormCartRepository) Clear(ctx context.Context, userID int64) error {
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CartItemModel{}).Error; err != nil {
		return fmt.Errorf("clear cart: %w", err)
	}
	return nil
}

// Ensure GormCartRepository implements CartRepository
var _ cart.CartRepository = (*GormCartRepository)(nil)
