package catalog

import (
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Product represents a sellable item in the catalog.
// Stock is only ever changed through the StockLedger; invoice code never assigns it.
type Product struct {
	shared.BaseAggregateRoot
	Code      string
	Name      string
	Price     decimal.Decimal
	Stock     int
	IsActive  bool
	DeletedAt *time.Time
}

// NewProduct creates a new active product with its opening stock
func NewProduct(code, name string, price decimal.Decimal, stock int) (*Product, error) {
	if err := validateProductCode(code); err != nil {
		return nil, err
	}
	if err := validateProductName(name); err != nil {
		return nil, err
	}
	if !price.IsPositive() {
		return nil, shared.Validationf("Product price must be positive")
	}
	if stock < 0 {
		return nil, shared.Validationf("Product stock cannot be negative")
	}

	return &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Code:              strings.ToUpper(strings.TrimSpace(code)),
		Name:              strings.TrimSpace(name),
		Price:             price,
		Stock:             stock,
		IsActive:          true,
	}, nil
}

// IsDeleted reports whether the product has been soft-deleted
func (p *Product) IsDeleted() bool {
	return p.DeletedAt != nil
}

// IsSellable reports whether the product can be put on a cart or invoice line
func (p *Product) IsSellable() bool {
	return p.IsActive && !p.IsDeleted()
}

// HasStock reports whether qty units are on hand
func (p *Product) HasStock(qty int) bool {
	return p.Stock >= qty
}

// SoftDelete deactivates the product. Products are never hard-deleted once
// referenced by an invoice line.
func (p *Product) SoftDelete() {
	now := time.Now()
	p.IsActive = false
	p.DeletedAt = &now
	p.UpdatedAt = now
}

// Restore reverses SoftDelete
func (p *Product) Restore() {
	p.IsActive = true
	p.DeletedAt = nil
	p.UpdatedAt = time.Now()
}

// validateProductCode validates the product code (3-20 chars, letters, digits, '-' and '_')
func validateProductCode(code string) error {
	code = strings.TrimSpace(code)
	if len(code) < 3 || len(code) > 20 {
		return shared.Validationf("Product code must be between 3 and 20 characters")
	}
	for _, r := range code {
		if !((r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-') {
			return shared.Validationf("Product code can only contain letters, numbers, underscores, and hyphens")
		}
	}
	return nil
}

// validateProductName validates the product name
func validateProductName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.Validationf("Product name cannot be empty")
	}
	if len(name) > 200 {
		return shared.Validationf("Product name cannot exceed 200 characters")
	}
	return nil
}
