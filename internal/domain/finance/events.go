package finance

import (
	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constant
const AggregateTypePayment = "Payment"

// Event type constants
const (
	EventTypePaymentCompleted = "PaymentCompleted"
	EventTypePaymentFailed    = "PaymentFailed"
	EventTypePaymentRefunded  = "PaymentRefunded"
	EventTypePaymentCancelled = "PaymentCancelled"
)

// PaymentEvent carries the fields shared by every payment event
type PaymentEvent struct {
	shared.BaseDomainEvent
	InvoiceID     int64           `json:"invoice_id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	Status        PaymentStatus   `json:"status"`
}

func newPaymentEvent(eventType string, p *Payment) PaymentEvent {
	return PaymentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(eventType, AggregateTypePayment, p.ID),
		InvoiceID:       p.InvoiceID,
		TransactionID:   p.TransactionID,
		Amount:          p.Amount,
		Status:          p.Status,
	}
}

// PaymentCompletedEvent is raised when a gateway approved the charge
type PaymentCompletedEvent struct {
	PaymentEvent
	ProcessorResponse string `json:"processor_response"`
}

// NewPaymentCompletedEvent creates a new PaymentCompletedEvent
func NewPaymentCompletedEvent(p *Payment) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		PaymentEvent:      newPaymentEvent(EventTypePaymentCompleted, p),
		ProcessorResponse: p.ProcessorResponse,
	}
}

// PaymentFailedEvent is raised when a charge was declined or errored
type PaymentFailedEvent struct {
	PaymentEvent
	FailureReason string `json:"failure_reason"`
}

// NewPaymentFailedEvent creates a new PaymentFailedEvent
func NewPaymentFailedEvent(p *Payment) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		PaymentEvent:  newPaymentEvent(EventTypePaymentFailed, p),
		FailureReason: p.FailureReason,
	}
}

// PaymentRefundedEvent is raised when a completed payment is refunded
type PaymentRefundedEvent struct {
	PaymentEvent
	RefundAmount decimal.Decimal `json:"refund_amount"`
	Reason       string          `json:"reason"`
}

// NewPaymentRefundedEvent creates a new PaymentRefundedEvent
func NewPaymentRefundedEvent(p *Payment) *PaymentRefundedEvent {
	return &PaymentRefundedEvent{
		PaymentEvent: newPaymentEvent(EventTypePaymentRefunded, p),
		RefundAmount: p.RefundAmount,
		Reason:       p.RefundReason,
	}
}

// PaymentCancelledEvent is raised when a pending payment is abandoned
type PaymentCancelledEvent struct {
	PaymentEvent
	Reason string `json:"reason"`
}

// NewPaymentCancelledEvent creates a new PaymentCancelledEvent
func NewPaymentCancelledEvent(p *Payment) *PaymentCancelledEvent {
	return &PaymentCancelledEvent{
		PaymentEvent: newPaymentEvent(EventTypePaymentCancelled, p),
		Reason:       p.CancelReason,
	}
}
