package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/erp/invoicing/internal/application/validation"
	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// CartService manages shopping carts. Stock is only checked here, never taken:
// checkout is what decreases it.
type CartService struct {
	cartRepo    cart.CartRepository
	productRepo catalog.ProductRepository
	ledger      catalog.StockLedger
	logger      *zap.Logger
}

// NewCartService creates a new CartService
func NewCartService(cartRepo cart.CartRepository, productRepo catalog.ProductRepository, ledger catalog.StockLedger, log *zap.Logger) *CartService {
	return &CartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		ledger:      ledger,
		logger:      logger.OrNop(log).Named("cart_service"),
	}
}

// AddToCart adds quantity of a product to the cart. An existing line is merged and
// its price snapshot refreshed to the current product price.
func (s *CartService) AddToCart(ctx context.Context, userID int64, req AddToCartRequest) (*CartItemResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "add")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrUserID, userID,
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindActiveByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	item, err := s.cartRepo.FindItem(ctx, userID, req.ProductID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		item, err = cart.NewCartItem(userID, product.ID, req.Quantity, product.Price)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	default:
		if err := item.Merge(req.Quantity, product.Price); err != nil {
			return nil, err
		}
	}

	if err := s.ensureStock(ctx, product, item.Quantity); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, item); err != nil {
		return nil, err
	}

	logger.For(ctx, s.logger).Debug("cart item saved",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", product.ID),
		zap.Int("quantity", item.Quantity),
	)
	out := ToCartItemResponse(item)
	return &out, nil
}

// UpdateCartItem sets the quantity of an existing cart line
func (s *CartService) UpdateCartItem(ctx context.Context, userID, productID int64, req UpdateCartItemRequest) (*CartItemResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "cart", "update")
	defer span.End()

	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	item, err := s.cartRepo.FindItem(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.FindActiveByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureStock(ctx, product, req.Quantity); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := item.SetQuantity(req.Quantity); err != nil {
		return nil, err
	}
	if err := s.cartRepo.Save(ctx, item); err != nil {
		return nil, err
	}
	out := ToCartItemResponse(item)
	return &out, nil
}

// RemoveFromCart deletes a cart line
func (s *CartService) RemoveFromCart(ctx context.Context, userID, productID int64) error {
	return s.cartRepo.Delete(ctx, userID, productID)
}

// ClearCart empties the user's cart
func (s *CartService) ClearCart(ctx context.Context, userID int64) error {
	return s.cartRepo.Clear(ctx, userID)
}

// GetCart returns the cart lines with invoice-equivalent totals
func (s *CartService) GetCart(ctx context.Context, userID int64) (*CartResponse, error) {
	items, err := s.cartRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := &CartResponse{
		UserID: userID,
		Items:  make([]CartItemResponse, len(items)),
	}
	lines := make([]invoicing.InvoiceDetail, len(items))
	for i := range items {
		resp.Items[i] = ToCartItemResponse(&items[i])
		lines[i] = invoicing.InvoiceDetail{Quantity: items[i].Quantity, UnitPrice: items[i].UnitPrice}
	}
	totals := invoicing.CalculateTotals(lines)
	resp.ItemCount = len(items)
	resp.Subtotal = totals.Subtotal
	resp.Tax = totals.Tax
	resp.Total = totals.Total
	return resp, nil
}

func (s *CartService) ensureStock(ctx context.Context, product *catalog.Product, qty int) error {
	ok, err := s.ledger.HasStock(ctx, product.ID, qty)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewDomainError(shared.CodeInsufficientStock,
			fmt.Sprintf("Insufficient stock for product %s: requested %d", product.Code, qty))
	}
	return nil
}
