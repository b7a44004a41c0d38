package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/partner"
)

// TransactionScope runs a unit of work atomically. Every repository handed to fn shares
// one database transaction, committed when fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides the repositories an invoice mutation touches.
//
// Invoice lines, product stock and the cart change together: a line add decreases stock,
// a checkout creates an invoice, decreases stock and clears the cart. Keeping them in one
// scope is what lets a late failure undo the earlier steps.
type TransactionalRepositories interface {
	InvoiceRepo() invoicing.InvoiceRepository
	ProductRepo() catalog.ProductRepository
	StockLedger() catalog.StockLedger
	ClientRepo() partner.ClientRepository
	CartRepo() cart.CartRepository
}

// NoOpTransactionScope runs the function against fixed repositories without a transaction.
// Tests use it with in-memory fakes.
type NoOpTransactionScope struct {
	invoiceRepo invoicing.InvoiceRepository
	productRepo catalog.ProductRepository
	stockLedger catalog.StockLedger
	clientRepo  partner.ClientRepository
	cartRepo    cart.CartRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories
func NewNoOpTransactionScope(
	invoiceRepo invoicing.InvoiceRepository,
	productRepo catalog.ProductRepository,
	stockLedger catalog.StockLedger,
	clientRepo partner.ClientRepository,
	cartRepo cart.CartRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		invoiceRepo: invoiceRepo,
		productRepo: productRepo,
		stockLedger: stockLedger,
		clientRepo:  clientRepo,
		cartRepo:    cartRepo,
	}
}

// Execute runs fn without a real transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// InvoiceRepo returns the invoice repository
func (s *NoOpTransactionScope) InvoiceRepo() invoicing.InvoiceRepository { return s.invoiceRepo }

// ProductRepo returns the product repository
func (s *NoOpTransactionScope) ProductRepo() catalog.ProductRepository { return s.productRepo }

// StockLedger returns the stock ledger
func (s *NoOpTransactionScope) StockLedger() catalog.StockLedger { return s.stockLedger }

// ClientRepo returns the client repository
func (s *NoOpTransactionScope) ClientRepo() partner.ClientRepository { return s.clientRepo }

// CartRepo returns the cart repository
func (s *NoOpTransactionScope) CartRepo() cart.CartRepository { return s.cartRepo }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
