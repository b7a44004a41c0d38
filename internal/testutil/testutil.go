// Package testutil provides common test utilities for the invoicing engine.
// It opens throwaway sqlite databases with the full schema and seeds the
// reference rows (clients, products, payment methods) most service tests need.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/erp/invoicing/internal/domain/catalog"
	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/partner"
	"github.com/erp/invoicing/internal/infrastructure/config"
	"github.com/erp/invoicing/internal/infrastructure/persistence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// TestDB wraps an in-memory sqlite database with the engine schema
type TestDB struct {
	*persistence.Database
	t *testing.T
}

// NewTestDB opens a private in-memory sqlite database and migrates it.
// The connection is closed when the test ends.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	db, err := persistence.NewDatabase(&config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   ":memory:",
	})
	require.NoError(t, err, "Failed to open sqlite database")
	require.NoError(t, db.AutoMigrate(context.Background()), "Failed to migrate schema")

	t.Cleanup(func() {
		_ = db.Close()
	})
	return &TestDB{Database: db, t: t}
}

// SeedClient stores an active client and returns it
func (db *TestDB) SeedClient(name string) *partner.Client {
	db.t.Helper()
	c, err := partner.NewClient(name, "")
	require.NoError(db.t, err)
	require.NoError(db.t, persistence.NewGormClientRepository(db.DB).Save(context.Background(), c))
	return c
}

// SeedProduct stores an active product with the given price and stock
func (db *TestDB) SeedProduct(code, name, price string, stock int) *catalog.Product {
	db.t.Helper()
	p, err := catalog.NewProduct(code, name, decimal.RequireFromString(price), stock)
	require.NoError(db.t, err)
	require.NoError(db.t, persistence.NewGormProductRepository(db.DB).Save(context.Background(), p))
	return p
}

// SeedPaymentMethods stores one active method per supported code, keyed by code
func (db *TestDB) SeedPaymentMethods() map[finance.PaymentMethodCode]*finance.PaymentMethod {
	db.t.Helper()
	methods, err := persistence.SeedPaymentMethods(context.Background(), db.DB)
	require.NoError(db.t, err)
	return methods
}

// Stock reads the current stock of a product straight from the table
func (db *TestDB) Stock(productID int64) int {
	db.t.Helper()
	p, err := persistence.NewGormProductRepository(db.DB).FindByID(context.Background(), productID)
	require.NoError(db.t, err)
	return p.Stock
}

// ContextWithTimeout returns a context cancelled at test end or after timeout
func ContextWithTimeout(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}
