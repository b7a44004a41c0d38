package cart

import (
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// CartItem is one line of a user's shopping cart, keyed by (UserID, ProductID).
// Items are ephemeral: checkout consumes them and nothing references them afterwards.
type CartItem struct {
	UserID    int64
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewCartItem creates a cart line with the product price snapshotted
func NewCartItem(userID, productID int64, quantity int, unitPrice decimal.Decimal) (*CartItem, error) {
	if userID <= 0 {
		return nil, shared.Validationf("User ID is required")
	}
	if productID <= 0 {
		return nil, shared.Validationf("Product ID is required")
	}
	if quantity <= 0 {
		return nil, shared.Validationf("Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.Validationf("Unit price cannot be negative")
	}

	now := time.Now()
	item := &CartItem{
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
		UnitPrice: unitPrice,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.recalculate()
	return item, nil
}

// SetQuantity replaces the line quantity
func (i *CartItem) SetQuantity(quantity int) error {
	if quantity <= 0 {
		return shared.Validationf("Quantity must be positive")
	}
	i.Quantity = quantity
	i.UpdatedAt = time.Now()
	i.recalculate()
	return nil
}

// Merge adds quantity to an existing line and refreshes the price snapshot
func (i *CartItem) Merge(quantity int, unitPrice decimal.Decimal) error {
	if quantity <= 0 {
		return shared.Validationf("Quantity must be positive")
	}
	i.Quantity += quantity
	i.UnitPrice = unitPrice
	i.UpdatedAt = time.Now()
	i.recalculate()
	return nil
}

func (i *CartItem) recalculate() {
	i.Subtotal = i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Round(2)
}
