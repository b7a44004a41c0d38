package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormStockLedger implements catalog.StockLedger with single-statement conditional updates,
// so concurrent decrements on the same product can never drive stock below zero.
type GormStockLedger struct {
	db *gorm.DB
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

// HasStock reports whether the product holds at least qty units
func (l *GormStockLedger) HasStock(ctx context.Context, productID int64, qty int) (bool, error) {
	if qty <= 0 {
		return false, shared.Validationf("Quantity must be positive, got %d", qty)
	}
	p, err := l.findLive(ctx, productID)
	if err != nil {
		return false, err
	}
	return p.Stock >= qty, nil
}

// Decrease removes qty units in one conditional UPDATE. When no row matches, the product
// is re-read to tell a missing product from a short one.
func (l *GormStockLedger) Decrease(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return shared.Validationf("Quantity must be positive, got %d", qty)
	}
	result := l.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ? AND deleted_at IS NULL AND stock >= ?", productID, qty).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock - ?", qty),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("decrease stock: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return nil
	}

	p, err := l.findLive(ctx, productID)
	if err != nil {
		return err
	}
	return shared.NewDomainError(shared.CodeInsufficientStock,
		fmt.Sprintf("Insufficient stock for product %s: requested %d, available %d", p.Code, qty, p.Stock))
}

// Increase returns qty units to stock. Soft-deleted products still take stock back,
// since lines referencing them can be removed; only a missing row is NotFound.
func (l *GormStockLedger) Increase(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return shared.Validationf("Quantity must be positive, got %d", qty)
	}
	result := l.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", qty),
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("increase stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NotFoundf("Product %d not found", productID)
	}
	return nil
}

func (l *GormStockLedger) findLive(ctx context.Context, productID int64) (*models.ProductModel, error) {
	var m models.ProductModel
	if err := l.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", productID).
		First(&m).Error; err != nil {
		return nil, translate(err, "read stock", func() error {
			return shared.NotFoundf("Product %d not found", productID)
		})
	}
	return &m, nil
}

// Ensure GormStockLedger implements StockLedger
var _ catalog.StockLedger = (*GormStockLedger)(nil)
