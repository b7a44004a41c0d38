package finance

import (
	"context"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
)

// TransactionScope runs a payment unit of work atomically.
// The payment row and the invoice status change commit together or not at all.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories a payment operation touches
type TransactionalRepositories interface {
	InvoiceRepo() invoicing.InvoiceRepository
	PaymentRepo() finance.PaymentRepository
	PaymentMethodRepo() finance.PaymentMethodRepository
}

// NoOpTransactionScope runs the function against fixed repositories without a transaction
type NoOpTransactionScope struct {
	invoiceRepo invoicing.InvoiceRepository
	paymentRepo finance.PaymentRepository
	methodRepo  finance.PaymentMethodRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	invoiceRepo invoicing.InvoiceRepository,
	paymentRepo finance.PaymentRepository,
	methodRepo finance.PaymentMethodRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo: invoiceRepo,
		paymentRepo: paymentRepo,
		methodRepo:  methodRepo,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository
func (s *NoOpTransactionScope) InvoiceRepo() invoicing.InvoiceRepository { return s.invoiceRepo }

// PaymentRepo returns the payment repository
func (s *NoOpTransactionScope) PaymentRepo() finance.PaymentRepository { return s.paymentRepo }

// PaymentMethodRepo returns the payment method repository
func (s *NoOpTransactionScope) PaymentMethodRepo() finance.PaymentMethodRepository {
	return s.methodRepo
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
