package cart

import (
	"time"

	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// AddToCartRequest puts a product into the user's cart
type AddToCartRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// UpdateCartItemRequest replaces the quantity of a cart line
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gt=0"`
}

// CartItemResponse represents a cart line
type CartItemResponse struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CartResponse is the user's cart with the totals an invoice built from it would carry
type CartResponse struct {
	UserID    int64              `json:"user_id"`
	Items     []CartItemResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	Subtotal  decimal.Decimal    `json:"subtotal"`
	Tax       decimal.Decimal    `json:"tax"`
	Total     decimal.Decimal    `json:"total"`
}

// ToCartItemResponse converts a domain CartItem to a response
func ToCartItemResponse(item *cart.CartItem) CartItemResponse {
	return CartItemResponse{
		ProductID: item.ProductID,
		Quantity:  item.Quantity,
		UnitPrice: item.UnitPrice,
		Subtotal:  item.Subtotal,
		UpdatedAt: item.UpdatedAt,
	}
}
