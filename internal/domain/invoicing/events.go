package invoicing

import (
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypeInvoice = "Invoice"

// Event type constants
const (
	EventTypeInvoiceCreated   = "InvoiceCreated"
	EventTypeInvoiceFinalized = "InvoiceFinalized"
	EventTypeInvoiceCancelled = "InvoiceCancelled"
	EventTypeInvoicePaid      = "InvoicePaid"
)

// InvoiceCreatedEvent is raised when a new invoice has been persisted
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      int64           `json:"client_id"`
	UserID        int64           `json:"user_id"`
	LineCount     int             `json:"line_count"`
	Total         decimal.Decimal `json:"total"`
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(inv *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		ClientID:        inv.ClientID,
		UserID:          inv.UserID,
		LineCount:       len(inv.Details),
		Total:           inv.Total,
	}
}

// InvoiceFinalizedEvent is raised when an invoice leaves Draft
type InvoiceFinalizedEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
}

// NewInvoiceFinalizedEvent creates a new InvoiceFinalizedEvent
func NewInvoiceFinalizedEvent(inv *Invoice) *InvoiceFinalizedEvent {
	return &InvoiceFinalizedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceFinalized, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		Total:           inv.Total,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled.
// HeldQuantity is the stock still attached to the lines, which cancellation does not return.
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string `json:"invoice_number"`
	Reason        string `json:"reason"`
	HeldQuantity  int    `json:"held_quantity"`
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(inv *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		Reason:          inv.CancelReason,
		HeldQuantity:    inv.TotalQuantity(),
	}
}

// InvoicePaidEvent is raised when a completed payment settles the invoice
type InvoicePaidEvent struct {
	shared.BaseDomainEvent
	InvoiceNumber string          `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
}

// NewInvoicePaidEvent creates a new InvoicePaidEvent
func NewInvoicePaidEvent(inv *Invoice) *InvoicePaidEvent {
	return &InvoicePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaid, AggregateTypeInvoice, inv.ID),
		InvoiceNumber:   inv.InvoiceNumber,
		Total:           inv.Total,
	}
}
