package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/application/validation"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/logger"
	"github.com/erp/invoicing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// AddProductToInvoice adds a product line and takes its stock.
// The invoice row stays locked until the line, the stock and the totals are written.
func (s *InvoiceService) AddProductToInvoice(ctx context.Context, invoiceID int64, req AddProductRequest) (resp *InvoiceResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "add_product", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "add_product")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID,
		telemetry.SpanAttrProductID, req.ProductID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var inv *invoicing.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if err := s.addLine(ctx, repos, inv, req.ProductID, req.Quantity); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.For(ctx, s.logger).Info("product added to invoice",
		zap.Int64("invoice_id", inv.ID),
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
		zap.String("total", inv.Total.StringFixed(2)),
	)
	out := ToInvoiceResponse(inv)
	return &out, nil
}

// RemoveProductFromInvoice drops a product line and returns its quantity to stock
func (s *InvoiceService) RemoveProductFromInvoice(ctx context.Context, invoiceID, productID int64) (resp *InvoiceResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "remove_product", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "remove_product")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID,
		telemetry.SpanAttrProductID, productID,
	)

	var inv *invoicing.Invoice
	var removed invoicing.InvoiceDetail
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		removed, err = s.removeLine(ctx, repos, inv, productID)
		if err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.For(ctx, s.logger).Info("product removed from invoice",
		zap.Int64("invoice_id", inv.ID),
		zap.Int64("product_id", productID),
		zap.Int("returned_quantity", removed.Quantity),
	)
	out := ToInvoiceResponse(inv)
	return &out, nil
}

// UpdateProductInInvoice replaces the line of OldProductID with a line of NewProductID.
// The old quantity goes back to stock before the new quantity is taken, so the same
// product may be re-added with a different quantity.
func (s *InvoiceService) UpdateProductInInvoice(ctx context.Context, invoiceID int64, req UpdateProductRequest) (resp *InvoiceResponse, err error) {
	defer s.metrics.ObserveOperation(ctx, "update_product", time.Now(), &err)
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "update_product")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoiceID,
		telemetry.SpanAttrProductID, req.NewProductID,
		telemetry.SpanAttrQuantity, req.Quantity,
	)

	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	var inv *invoicing.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		inv, err = repos.InvoiceRepo().FindByIDForUpdate(ctx, invoiceID)
		if err != nil {
			return err
		}
		if _, err := s.removeLine(ctx, repos, inv, req.OldProductID); err != nil {
			return err
		}
		if err := s.addLine(ctx, repos, inv, req.NewProductID, req.Quantity); err != nil {
			return err
		}
		return repos.InvoiceRepo().SaveWithLock(ctx, inv)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.For(ctx, s.logger).Info("invoice line replaced",
		zap.Int64("invoice_id", inv.ID),
		zap.Int64("old_product_id", req.OldProductID),
		zap.Int64("new_product_id", req.NewProductID),
		zap.Int("quantity", req.Quantity),
	)
	out := ToInvoiceResponse(inv)
	return &out, nil
}

// addLine snapshots the product's current price onto a new line and takes the stock.
// An existing line wins over a product that has since been deleted.
func (s *InvoiceService) addLine(ctx context.Context, repos TransactionalRepositories, inv *invoicing.Invoice, productID int64, qty int) error {
	if inv.FindDetail(productID) != nil {
		return shared.NewDomainError(shared.CodeDuplicateLine,
			fmt.Sprintf("Product %d already has a line on invoice %s", productID, inv.InvoiceNumber))
	}
	product, err := repos.ProductRepo().FindActiveByID(ctx, productID)
	if err != nil {
		return err
	}
	if _, err := inv.AddDetailWithPolicy(s.linePolicy(), product.ID, product.Code, product.Name, qty, product.Price); err != nil {
		return err
	}
	return s.decreaseStock(ctx, repos, "add_product", product.ID, qty)
}

func (s *InvoiceService) removeLine(ctx context.Context, repos TransactionalRepositories, inv *invoicing.Invoice, productID int64) (invoicing.InvoiceDetail, error) {
	removed, err := inv.RemoveDetailWithPolicy(s.linePolicy(), productID)
	if err != nil {
		return invoicing.InvoiceDetail{}, err
	}
	if err := repos.StockLedger().Increase(ctx, productID, removed.Quantity); err != nil {
		return invoicing.InvoiceDetail{}, err
	}
	return removed, nil
}
