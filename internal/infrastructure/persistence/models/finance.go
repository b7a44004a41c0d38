package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentMethodModel is the persistence model for a payment method
type PaymentMethodModel struct {
	BaseModel
	Code     finance.PaymentMethodCode `gorm:"type:varchar(30);not null;uniqueIndex"`
	Name     string                    `gorm:"type:varchar(100);not null"`
	IsActive bool                      `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentMethodModel) TableName() string {
	return "payment_methods"
}

// ToDomain converts the persistence model to a domain PaymentMethod
func (m *PaymentMethodModel) ToDomain() *finance.PaymentMethod {
	return &finance.PaymentMethod{
		BaseEntity: m.BaseModel.ToDomain(),
		Code:       m.Code,
		Name:       m.Name,
		IsActive:   m.IsActive,
	}
}

// FromDomain populates the persistence model from a domain PaymentMethod
func (m *PaymentMethodModel) FromDomain(pm *finance.PaymentMethod) {
	m.FromDomainBaseEntity(pm.BaseEntity)
	m.Code = pm.Code
	m.Name = pm.Name
	m.IsActive = pm.IsActive
}

// PaymentModel is the persistence model for the Payment aggregate.
// The partial unique index keeps a second COMPLETED payment for the same invoice out of the table.
type PaymentModel struct {
	AggregateModel
	InvoiceID         int64                 `gorm:"not null;index;uniqueIndex:idx_payments_invoice_completed,where:status = 'COMPLETED'"`
	PaymentMethodID   int64                 `gorm:"not null;index"`
	UserID            int64                 `gorm:"not null;index"`
	Amount            decimal.Decimal       `gorm:"type:decimal(18,2);not null"`
	TransactionID     string                `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status            finance.PaymentStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Note              string                `gorm:"type:varchar(500)"`
	PaymentDate       time.Time             `gorm:"not null"`
	ProcessedAt       *time.Time
	ProcessorResponse string          `gorm:"type:varchar(500)"`
	FailureReason     string          `gorm:"type:varchar(500)"`
	GatewayReference  string          `gorm:"type:varchar(100)"`
	RefundAmount      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0"`
	RefundReason      string          `gorm:"type:varchar(500)"`
	RefundedAt        *time.Time
	CancelReason      string `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	return &finance.Payment{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		InvoiceID:         m.InvoiceID,
		PaymentMethodID:   m.PaymentMethodID,
		UserID:            m.UserID,
		Amount:            m.Amount,
		TransactionID:     m.TransactionID,
		Status:            m.Status,
		Note:              m.Note,
		PaymentDate:       m.PaymentDate,
		ProcessedAt:       m.ProcessedAt,
		ProcessorResponse: m.ProcessorResponse,
		FailureReason:     m.FailureReason,
		GatewayReference:  m.GatewayReference,
		RefundAmount:      m.RefundAmount,
		RefundReason:      m.RefundReason,
		RefundedAt:        m.RefundedAt,
		CancelReason:      m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.FromDomainAggregateRoot(p.BaseAggregateRoot)
	m.InvoiceID = p.InvoiceID
	m.PaymentMethodID = p.PaymentMethodID
	m.UserID = p.UserID
	m.Amount = p.Amount
	m.TransactionID = p.TransactionID
	m.Status = p.Status
	m.Note = p.Note
	m.PaymentDate = p.PaymentDate
	m.ProcessedAt = p.ProcessedAt
	m.ProcessorResponse = p.ProcessorResponse
	m.FailureReason = p.FailureReason
	m.GatewayReference = p.GatewayReference
	m.RefundAmount = p.RefundAmount
	m.RefundReason = p.RefundReason
	m.RefundedAt = p.RefundedAt
	m.CancelReason = p.CancelReason
}
