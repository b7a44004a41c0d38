package finance

import (
	"context"

	"github.com/erp/invoicing/internal/domain/shared"
)

// PaymentRepository defines the interface for payment persistence
type PaymentRepository interface {
	// FindByID finds a payment by ID
	FindByID(ctx context.Context, id int64) (*Payment, error)

	// FindByIDForUpdate finds a payment and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id int64) (*Payment, error)

	// FindByTransactionID finds a payment by its external transaction id
	FindByTransactionID(ctx context.Context, transactionID string) (*Payment, error)

	// FindByInvoice lists every payment attempt of an invoice, oldest first
	FindByInvoice(ctx context.Context, invoiceID int64) ([]Payment, error)

	// FindByUser lists the payments a user initiated, newest first
	FindByUser(ctx context.Context, userID int64, filter shared.Filter) ([]Payment, int64, error)

	// HasCompletedPayment reports whether the invoice already has a COMPLETED payment
	HasCompletedPayment(ctx context.Context, invoiceID int64) (bool, error)

	// Save inserts a new payment or updates an existing one
	Save(ctx context.Context, payment *Payment) error
}

// PaymentMethodRepository defines the interface for payment method persistence
type PaymentMethodRepository interface {
	// FindByID finds a payment method by ID
	FindByID(ctx context.Context, id int64) (*PaymentMethod, error)

	// FindByCode finds a payment method by code
	FindByCode(ctx context.Context, code PaymentMethodCode) (*PaymentMethod, error)

	// FindAll lists payment methods, optionally only the active ones
	FindAll(ctx context.Context, activeOnly bool) ([]PaymentMethod, error)

	// Save inserts or updates a payment method
	Save(ctx context.Context, method *PaymentMethod) error
}
