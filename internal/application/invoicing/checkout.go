package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/application/validation"
	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Checkout converts the user's cart into a Draft invoice for the client.
//
// The cart is checked in full before anything is written: an empty cart, an unknown
// client or a short product fails the call with nothing changed. The invoice, the stock
// decrements and the cart clear then commit together. Lines keep the unit price the
// cart captured when the item was added.
func (s *InvoiceService) Checkout(ctx context.Context, userID int64, req CheckoutRequest) (resp *InvoiceResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "checkout", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "checkout")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrUserID, userID, telemetry.SpanAttrClientID, req.ClientID)

	if userID <= 0 {
		return nil, shared.Validationf("User ID is required")
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var inv *invoicing.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		items, err := repos.CartRepo().FindByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return shared.NewDomainError(shared.CodeEmptyCart, fmt.Sprintf("Cart of user %d is empty", userID))
		}
		if err := requireClient(ctx, repos, req.ClientID); err != nil {
			return err
		}

		products := make(map[int64]*catalog.Product, len(items))
		for _, item := range items {
			product, err := repos.ProductRepo().FindActiveByID(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !product.HasStock(item.Quantity) {
				s.metrics.RecordStockRejected(ctx, "checkout")
				return shared.NewDomainError(shared.CodeInsufficientStock,
					fmt.Sprintf("Insufficient stock for product %s: requested %d, available %d",
						product.Code, item.Quantity, product.Stock))
			}
			products[item.ProductID] = product
		}

		number, err := s.allocateNumber(ctx, repos.InvoiceRepo())
		if err != nil {
			return err
		}
		inv, err = invoicing.NewInvoice(number, req.ClientID, userID, req.Observations)
		if err != nil {
			return err
		}
		for _, item := range items {
			product := products[item.ProductID]
			if _, err := inv.AddDetail(product.ID, product.Code, product.Name, item.Quantity, item.UnitPrice); err != nil {
				return err
			}
			// the pre-check read a snapshot; the conditional decrement is what guards stock
			if err := s.decreaseStock(ctx, repos, "checkout", product.ID, item.Quantity); err != nil {
				return err
			}
		}
		if err := repos.InvoiceRepo().Save(ctx, inv); err != nil {
			return err
		}
		return repos.CartRepo().Clear(ctx, userID)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	inv.RecordCreated()
	s.publishDomainEvents(ctx, inv)
	s.metrics.RecordInvoiceCreated(ctx, "checkout", inv.Total)
	logger.For(ctx, s.logger).Info("cart checked out",
		zap.Int64("user_id", userID),
		zap.Int64("invoice_id", inv.ID),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Int("lines", inv.ItemCount()),
		zap.String("total", inv.Total.StringFixed(2)),
	)

	out := ToInvoiceResponse(inv)
	return &out, nil
}
