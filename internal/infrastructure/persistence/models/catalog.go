package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/shopspring/decimal"
)

// ProductModel is the persistence model for the Product aggregate.
// DeletedAt is a plain column so soft-deleted rows stay visible to lookups by ID.
type ProductModel struct {
	AggregateModel
	Code      string          `gorm:"type:varchar(20);not null;uniqueIndex"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Price     decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Stock     int             `gorm:"not null;default:0;check:chk_products_stock_non_negative,stock >= 0"`
	IsActive  bool            `gorm:"not null"`
	DeletedAt *time.Time      `gorm:"index"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *catalog.Product {
	return &catalog.Product{
		BaseAggregateRoot: m.ToAggregateRoot(),
		Code:              m.Code,
		Name:              m.Name,
		Price:             m.Price,
		Stock:             m.Stock,
		IsActive:          m.IsActive,
		DeletedAt:         m.DeletedAt,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.Code = p.Code
	m.Name = p.Name
	m.Price = p.Price
	m.Stock = p.Stock
	m.IsActive = p.IsActive
	m.DeletedAt = p.DeletedAt
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
