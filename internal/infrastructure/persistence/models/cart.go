package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// CartItemModel is the persistence model for a cart line, keyed by (user, product)
type CartItemModel struct {
	UserID    int64           `gorm:"primaryKey;autoIncrement:false"`
	ProductID int64           `gorm:"primaryKey;autoIncrement:false"`
	Quantity  int             `gorm:"not null"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Subtotal  decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	CreatedAt time.Time       `gorm:"not null"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartItemModel) TableName() string {
	return "cart_items"
}

// ToDomain converts the persistence model to a domain CartItem
func (m *CartItemModel) ToDomain() *cart.CartItem {
	return &cart.CartItem{
		UserID:    m.UserID,
		ProductID: m.ProductID,
		Quantity:  m.Quantity,
		UnitPrice: m.UnitPrice,
		Subtotal:  m.Subtotal,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain CartItem
func (m *CartItemModel) FromDomain(i *cart.CartItem) {
	m.UserID = i.UserID
	m.ProductID = i.ProductID
	m.Quantity = i.Quantity
	m.UnitPrice = i.UnitPrice
	m.Subtotal = i.Subtotal
	m.CreatedAt = i.CreatedAt
	m.UpdatedAt = i.UpdatedAt
}
