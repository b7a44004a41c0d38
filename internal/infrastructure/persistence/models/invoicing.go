package models

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceModel is the persistence model for the Invoice aggregate root
type InvoiceModel struct {
	AggregateModel
	InvoiceNumber string                  `gorm:"type:varchar(50);not null;uniqueIndex"`
	ClientID      int64                   `gorm:"not null;index"`
	UserID        int64                   `gorm:"not null;index"`
	IssueDate     time.Time               `gorm:"not null"`
	Subtotal      decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	Tax           decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	Total         decimal.Decimal         `gorm:"type:decimal(18,2);not null;default:0"`
	Observations  string                  `gorm:"type:varchar(500)"`
	Status        invoicing.InvoiceStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	IsActive      bool                    `gorm:"not null;index"`
	FinalizedAt   *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string `gorm:"type:varchar(500)"`
	DeletedAt     *time.Time
	DeleteReason  string               `gorm:"type:varchar(500)"`
	Details       []InvoiceDetailModel `gorm:"foreignKey:InvoiceID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *invoicing.Invoice {
	inv := &invoicing.Invoice{
		BaseAggregateRoot: m.ToAggregateRoot(),
		InvoiceNumber:     m.InvoiceNumber,
		ClientID:          m.ClientID,
		UserID:            m.UserID,
		IssueDate:         m.IssueDate,
		Subtotal:          m.Subtotal,
		Tax:               m.Tax,
		Total:             m.Total,
		Observations:      m.Observations,
		Status:            m.Status,
		IsActive:          m.IsActive,
		FinalizedAt:       m.FinalizedAt,
		PaidAt:            m.PaidAt,
		CancelledAt:       m.CancelledAt,
		CancelReason:      m.CancelReason,
		DeletedAt:         m.DeletedAt,
		DeleteReason:      m.DeleteReason,
		Details:           make([]invoicing.InvoiceDetail, len(m.Details)),
	}
	for i := range m.Details {
		inv.Details[i] = *m.Details[i].ToDomain()
	}
	return inv
}

// FromDomain populates the persistence model from a domain Invoice, lines included
func (m *InvoiceModel) FromDomain(inv *invoicing.Invoice) {
	m.FromDomainAggregateRoot(inv.BaseAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ClientID = inv.ClientID
	m.UserID = inv.UserID
	m.IssueDate = inv.IssueDate
	m.Subtotal = inv.Subtotal
	m.Tax = inv.Tax
	m.Total = inv.Total
	m.Observations = inv.Observations
	m.Status = inv.Status
	m.IsActive = inv.IsActive
	m.FinalizedAt = inv.FinalizedAt
	m.PaidAt = inv.PaidAt
	m.CancelledAt = inv.CancelledAt
	m.CancelReason = inv.CancelReason
	m.DeletedAt = inv.DeletedAt
	m.DeleteReason = inv.DeleteReason
	m.Details = make([]InvoiceDetailModel, len(inv.Details))
	for i := range inv.Details {
		m.Details[i].FromDomain(&inv.Details[i])
	}
}

// InvoiceDetailModel is the persistence model for an invoice line
type InvoiceDetailModel struct {
	BaseModel
	InvoiceID   int64           `gorm:"not null;uniqueIndex:idx_invoice_details_invoice_product,priority:1"`
	ProductID   int64           `gorm:"not null;uniqueIndex:idx_invoice_details_invoice_product,priority:2;index"`
	ProductCode string          `gorm:"type:varchar(20);not null"`
	ProductName string          `gorm:"type:varchar(200);not null"`
	Quantity    int             `gorm:"not null;check:chk_invoice_details_quantity_positive,quantity > 0"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(18,2);not null"`
}

// TableName returns the table name for GORM
func (InvoiceDetailModel) TableName() string {
	return "invoice_details"
}

// ToDomain converts the persistence model to a domain InvoiceDetail
func (m *InvoiceDetailModel) ToDomain() *invoicing.InvoiceDetail {
	return &invoicing.InvoiceDetail{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		ProductID:   m.ProductID,
		ProductCode: m.ProductCode,
		ProductName: m.ProductName,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Subtotal:    m.Subtotal,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain InvoiceDetail
func (m *InvoiceDetailModel) FromDomain(d *invoicing.InvoiceDetail) {
	m.ID = d.ID
	m.CreatedAt = d.CreatedAt
	m.UpdatedAt = d.UpdatedAt
	m.InvoiceID = d.InvoiceID
	m.ProductID = d.ProductID
	m.ProductCode = d.ProductCode
	m.ProductName = d.ProductName
	m.Quantity = d.Quantity
	m.UnitPrice = d.UnitPrice
	m.Subtotal = d.Subtotal
}
