package catalog

import "context"

// ProductRepository is the read side of the catalog consumed by the invoicing core.
// Product creation and editing belong to catalog management.
type ProductRepository interface {
	// FindByID finds a product by ID, including soft-deleted rows
	FindByID(ctx context.Context, id int64) (*Product, error)

	// FindActiveByID finds a product that is active and not soft-deleted
	FindActiveByID(ctx context.Context, id int64) (*Product, error)

	// FindByCode finds a product by its unique code
	FindByCode(ctx context.Context, code string) (*Product, error)

	// FindByIDs finds multiple products by ID
	FindByIDs(ctx context.Context, ids []int64) ([]Product, error)

	// Save creates or updates a product (catalog management, seeding)
	Save(ctx context.Context, product *Product) error
}

// StockLedger owns product quantity-on-hand.
//
// Decrease never lets stock go negative: it is a conditional update that either applies
// in full or leaves the row untouched. Callers wrap ledger calls together with invoice or
// cart mutations in one transaction so a later failure rolls an earlier change back.
type StockLedger interface {
	// HasStock reports whether the product currently holds at least qty units.
	// Missing or soft-deleted products yield NOT_FOUND.
	HasStock(ctx context.Context, productID int64, qty int) (bool, error)

	// Decrease removes qty units. Fails with INSUFFICIENT_STOCK when stock < qty and
	// NOT_FOUND when the product is missing or soft-deleted.
	Decrease(ctx context.Context, productID int64, qty int) error

	// Increase returns qty units. Fails only with NOT_FOUND; there is no upper bound.
	Increase(ctx context.Context, productID int64, qty int) error
}
