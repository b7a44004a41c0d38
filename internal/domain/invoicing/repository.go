package invoicing

import (
	"context"

	"github.com/erp/invoicing/internal/domain/shared"
)

// InvoiceFilter narrows invoice listings
type InvoiceFilter struct {
	shared.Filter
	ClientID        int64
	UserID          int64
	Status          InvoiceStatus
	IncludeInactive bool
}

// InvoiceRepository defines the interface for invoice persistence.
// Details are always loaded with their invoice.
type InvoiceRepository interface {
	// FindByID finds an invoice by ID, soft-deleted ones included
	FindByID(ctx context.Context, id int64) (*Invoice, error)

	// FindByIDForUpdate finds an invoice and locks its row until the transaction ends
	FindByIDForUpdate(ctx context.Context, id int64) (*Invoice, error)

	// FindByNumber finds an invoice by its number
	FindByNumber(ctx context.Context, number string) (*Invoice, error)

	// FindAll lists invoices; soft-deleted ones are skipped unless IncludeInactive is set
	FindAll(ctx context.Context, filter InvoiceFilter) ([]Invoice, int64, error)

	// ExistsByNumber reports whether the number is already taken
	ExistsByNumber(ctx context.Context, number string) (bool, error)

	// Save inserts a new invoice with its lines
	Save(ctx context.Context, invoice *Invoice) error

	// SaveWithLock updates an existing invoice and reconciles its lines.
	// Fails with CONFLICT when the stored version no longer matches.
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}
