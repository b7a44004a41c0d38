package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/erp/invoicing/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// FindByID finds a payment by its ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, id int64) (*finance.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find payment", func() error {
			return shared.NotFoundf("Payment %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// FindByIDForUpdate finds a payment and locks its row
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, id int64) (*finance.Payment, error) {
	var m models.PaymentModel
	if err := forUpdate(r.db.WithContext(ctx)).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "lock payment", func() error {
			return shared.NotFoundf("Payment %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// FindByTransactionID finds a payment by its transaction id
func (r *GormPaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*finance.Payment, error) {
	var m models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		First(&m).Error; err != nil {
		return nil, translate(err, "find payment by transaction", func() error {
			return shared.NotFoundf("Payment with transaction %s not found", transactionID)
		})
	}
	return m.ToDomain(), nil
}

// FindByInvoice lists every payment attempt of an invoice, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, invoiceID int64) ([]finance.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find invoice payments: %w", err)
	}
	return toPayments(rows), nil
}

// FindByUser lists a user's payments, newest first by default
func (r *GormPaymentRepository) FindByUser(ctx context.Context, userID int64, filter shared.Filter) ([]finance.Payment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count user payments: %w", err)
	}

	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, PaymentSortFields, "payment_date")).Order("id DESC")
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.PaymentModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("find user payments: %w", err)
	}
	return toPayments(rows), total, nil
}

// HasCompletedPayment reports whether the invoice already has a COMPLETED payment
func (r *GormPaymentRepository) HasCompletedPayment(ctx context.Context, invoiceID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("invoice_id = ? AND status = ?", invoiceID, finance.PaymentStatusCompleted).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check completed payment: %w", err)
	}
	return count > 0, nil
}

// Save inserts a new payment or updates an existing one under its version token
func (r *GormPaymentRepository) Save(ctx context.Context, payment *finance.Payment) error {
	m := &models.PaymentModel{}
	m.FromDomain(payment)
	if payment.ID == 0 {
		if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
			return fmt.Errorf("create payment: %w", err)
		}
		payment.ID = m.ID
		return nil
	}

	now := time.Now()
	result := r.db.WithContext(ctx).
		Model(&models.PaymentModel{}).
		Where("id = ? AND version = ?", payment.ID, payment.Version).
		Updates(map[string]any{
			"status":             payment.Status,
			"processed_at":       payment.ProcessedAt,
			"processor_response": payment.ProcessorResponse,
			"failure_reason":     payment.FailureReason,
			"gateway_reference":  payment.GatewayReference,
			"refund_amount":      payment.RefundAmount,
			"refund_reason":      payment.RefundReason,
			"refunded_at":        payment.RefundedAt,
			"cancel_reason":      payment.CancelReason,
			"version":            payment.Version + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return fmt.Errorf("update payment: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.NewDomainError(shared.CodeConflict, fmt.Sprintf("Payment %d was modified by another transaction", payment.ID))
	}
	payment.Version++
	payment.UpdatedAt = now
	return nil
}

func toPayments(rows []models.PaymentModel) []finance.Payment {
	payments := make([]finance.Payment, len(rows))
	for i := range rows {
		payments[i] = *rows[i].ToDomain()
	}
	return payments
}

// GormPaymentMethodRepository implements PaymentMethodRepository using GORM
type GormPaymentMethodRepository struct {
	db *gorm.DB
}

// NewGormPaymentMethodRepository creates a new GormPaymentMethodRepository
func NewGormPaymentMethodRepository(db *gorm.DB) *GormPaymentMethodRepository {
	return &GormPaymentMethodRepository{db: db}
}

// FindByID finds a payment method by its ID
func (r *GormPaymentMethodRepository) FindByID(ctx context.Context, id int64) (*finance.PaymentMethod, error) {
	var m models.PaymentMethodModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "find payment method", func() error {
			return shared.NotFoundf("Payment method %d not found", id)
		})
	}
	return m.ToDomain(), nil
}

// FindByCode finds a payment method by its code
func (r *GormPaymentMethodRepository) FindByCode(ctx context.Context, code finance.PaymentMethodCode) (*finance.PaymentMethod, error) {
	var m models.PaymentMethodModel
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error; err != nil {
		return nil, translate(err, "find payment method by code", func() error {
			return shared.NotFoundf("Payment method %s not found", code)
		})
	}
	return m.ToDomain(), nil
}

// FindAll lists payment methods ordered by id
func (r *GormPaymentMethodRepository) FindAll(ctx context.Context, activeOnly bool) ([]finance.PaymentMethod, error) {
	query := r.db.WithContext(ctx).Model(&models.PaymentMethodModel{})
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var rows []models.PaymentMethodModel
	if err := query.Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	methods := make([]finance.PaymentMethod, len(rows))
	for i := range rows {
		methods[i] = *rows[i].ToDomain()
	}
	return methods, nil
}

// Save inserts or updates a payment method
func (r *GormPaymentMethodRepository) Save(ctx context.Context, method *finance.PaymentMethod) error {
	m := &models.PaymentMethodModel{}
	m.FromDomain(method)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("save payment method: %w", err)
	}
	method.ID = m.ID
	return nil
}

// Ensure repositories implement their domain contracts
var (
	_ finance.PaymentRepository       = (*GormPaymentRepository)(nil)
	_ finance.PaymentMethodRepository = (*GormPaymentMethodRepository)(nil)
)
