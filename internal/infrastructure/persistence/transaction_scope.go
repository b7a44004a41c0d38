package persistence

import (
	"context"

	appfinance "github.com/erp/invoicing/internal/application/finance"
	appinvoicing "github.com/erp/invoicing/internal/application/invoicing"
	"github.com/erp/invoicing/internal/domain/cart"
	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/partner"
	"gorm.io/gorm"
)

// GormTransactionScope implements the invoicing TransactionScope using GORM transactions.
// The transaction is bound to ctx, so a cancelled context rolls everything back.
type GormTransactionScope struct {
	db *gorm.DB
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB) *GormTransactionScope {
	return &GormTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinvoicing.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// GormPaymentTransactionScope implements the finance TransactionScope using GORM transactions.
type GormPaymentTransactionScope struct {
	db *gorm.DB
}

// NewGormPaymentTransactionScope creates a new GormPaymentTransactionScope.
func NewGormPaymentTransactionScope(db *gorm.DB) *GormPaymentTransactionScope {
	return &GormPaymentTransactionScope{db: db}
}

// Execute runs the given function within a database transaction.
func (s *GormPaymentTransactionScope) Execute(ctx context.Context, fn func(repos appfinance.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTransactionalRepositories{tx: tx})
	})
}

// gormTransactionalRepositories hands out repositories bound to the current transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

// InvoiceRepo returns the invoice repository scoped to the current transaction.
func (r *gormTransactionalRepositories) InvoiceRepo() invoicing.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

// ProductRepo returns the product repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ProductRepo() catalog.ProductRepository {
	return NewGormProductRepository(r.tx)
}

// StockLedger returns the stock ledger scoped to the current transaction.
func (r *gormTransactionalRepositories) StockLedger() catalog.StockLedger {
	return NewGormStockLedger(r.tx)
}

// ClientRepo returns the client repository scoped to the current transaction.
func (r *gormTransactionalRepositories) ClientRepo() partner.ClientRepository {
	return NewGormClientRepository(r.tx)
}

// CartRepo returns the cart repository scoped to the current transaction.
func (r *gormTransactionalRepositories) CartRepo() cart.CartRepository {
	return NewGormCartRepository(r.tx)
}

// PaymentRepo returns the payment repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentRepo() finance.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

// PaymentMethodRepo returns the payment method repository scoped to the current transaction.
func (r *gormTransactionalRepositories) PaymentMethodRepo() finance.PaymentMethodRepository {
	return NewGormPaymentMethodRepository(r.tx)
}

var (
	_ appinvoicing.TransactionScope          = (*GormTransactionScope)(nil)
	_ appfinance.TransactionScope            = (*GormPaymentTransactionScope)(nil)
	_ appinvoicing.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
	_ appfinance.TransactionalRepositories   = (*gormTransactionalRepositories)(nil)
)
