package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func (r *GormInvoiceRepository) withDetails(db *gorm.DB) *gorm.DB {
	return db.Preload("Details", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("invoice_details.id ASC")
	})
}

// FindByID finds an invoice with its lines, soft-deleted invoices included
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id int64) (*invoicing.Invoice, error) {
	var m models.InvoiceModel
	if err := r.withDetails(r.db.WithContext(ctx)).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find invoice", func() error {
			return shared.NotFoundf("Invoice %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate finds an invoice and locks its row for the rest of the transaction
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, id int64) (*invoicing.Invoice, error) {
	var m models.InvoiceModel
	db := forUpdate(r.db.WithContext(ctx))
	if err := db.First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "lock invoice", func() error {
			return shared.NotFoundf("Invoice %d not found", id)
		})
	}
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", id).
		Order("id ASC").
		Find(&m.Details).Error; err != nil {
		return nil, fmt.Errorf("load invoice details: %w", err)
	}
	return m.ToDomain(), nil
}

// FindByNumber finds an invoice by its number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, number string) (*invoicing.Invoice, error) {
	var m models.InvoiceModel
	if err := r.withDetails(r.db.WithContext(ctx)).
		Where("invoice_number = ?", number).
		First(&m).Error; err != nil {
		return nil, translate(err, "find invoice by number", func() error {
			return shared.NotFoundf("Invoice %s not found", number)
		})
	}
	return m.ToDomain(), nil
}

// FindAll lists invoices matching the filter together with the total match count
func (r *GormInvoiceRepository) FindAll(ctx context.Context, filter invoicing.InvoiceFilter) ([]invoicing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.InvoiceModel{})
	if !filter.IncludeInactive {
		query = query.Where("deleted_at IS NULL")
	}
	if filter.ClientID != 0 {
		query = query.Where("client_id = ?", filter.ClientID)
	}
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, InvoiceSortFields, "created_at"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.InvoiceModel
	if err := r.withDetails(query).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}
	invoices := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		invoices[i] = *rows[i].ToDomain()
	}
	return invoices, total, nil
}

// ExistsByNumber reports whether an invoice number is already taken
func (r *GormInvoiceRepository) ExistsByNumber(ctx context.Context, number string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("invoice_number = ?", number).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check invoice number: %w", err)
	}
	return count > 0, nil
}

// Save inserts a new invoice and its lines, writing the generated ids back
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	m := &models.InvoiceModel{}
	m.FromDomain(invoice)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	invoice.ID = m.ID
	for i := range invoice.Details {
		invoice.Details[i].ID = m.Details[i].ID
		invoice.Details[i].InvoiceID = m.ID
	}
	return nil
}

// SaveWithLock updates the invoice header under its version token and reconciles
// the stored lines with the aggregate's lines.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *invoicing.Invoice) error {
	db := r.db.WithContext(ctx)
	now := time.Now()

	result := db.Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, invoice.Version).
		Updates(map[string]any{
			"subtotal":      invoice.Subtotal,
			"tax":           invoice.Tax,
			"total":         invoice.Total,
			"observations":  invoice.Observations,
			"status":        invoice.Status,
			"is_active":     invoice.IsActive,
			"finalized_at":  invoice.FinalizedAt,
			"paid_at":       invoice.PaidAt,
			"cancelled_at":  invoice.CancelledAt,
			"cancel_reason": invoice.CancelReason,
			"deleted_at":    invoice.DeletedAt,
			"delete_reason": invoice.DeleteReason,
			"version":       invoice.Version + 1,
			"updated_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("update invoice: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return r.classifyMissedUpdate(ctx, invoice.ID)
	}

	if err := r.reconcileDetails(ctx, invoice); err != nil {
		return err
	}

	invoice.Version++
	invoice.UpdatedAt = now
	return nil
}

func (r *GormInvoiceRepository) classifyMissedUpdate(ctx context.Context, id int64) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("check invoice: %w", err)
	}
	if count == 0 {
		return shared.NotFoundf("Invoice %d not found", id)
	}
	return shared.NewDomainError(shared.CodeConflict, fmt.Sprintf("Invoice %d was modified by another transaction", id))
}

// reconcileDetails deletes removed lines, updates kept ones and inserts new ones
func (r *GormInvoiceRepository) reconcileDetails(ctx context.Context, invoice *invoicing.Invoice) error {
	db := r.db.WithContext(ctx)

	keep := make([]int64, 0, len(invoice.Details))
	for _, d := range invoice.Details {
		if d.ID != 0 {
			keep = append(keep, d.ID)
		}
	}
	del := db.Where("invoice_id = ?", invoice.ID)
	if len(keep) > 0 {
		del = del.Where("id NOT IN ?", keep)
	}
	if err := del.Delete(&models.InvoiceDetailModel{}).Error; err != nil {
		return fmt.Errorf("delete invoice details: %w", err)
	}

	for i := range invoice.Details {
		d := &invoice.Details[i]
		d.InvoiceID = invoice.ID
		m := &models.InvoiceDetailModel{}
		m.FromDomain(d)
		if d.ID == 0 {
			if err := db.Create(m).Error; err != nil {
				return fmt.Errorf("create invoice detail: %w", err)
			}
			d.ID = m.ID
			continue
		}
		if err := db.Model(&models.InvoiceDetailModel{}).
			Where("id = ?", d.ID).
			Updates(map[string]any{
				"quantity":   d.Quantity,
				"unit_price": d.UnitPrice,
				"subtotal":   d.Subtotal,
				"updated_at": d.UpdatedAt,
			}).Error; err != nil {
			return fmt.Errorf("update invoice detail: %w", err)
		}
	}
	return nil
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)
