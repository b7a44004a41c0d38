package finance

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PaymentStatus represents the status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
	PaymentStatusRefunded   PaymentStatus = "REFUNDED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusCompleted,
		PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s PaymentStatus) CanTransitionTo(target PaymentStatus) bool {
	switch s {
	case PaymentStatusPending:
		return target == PaymentStatusProcessing || target == PaymentStatusCompleted ||
			target == PaymentStatusFailed || target == PaymentStatusCancelled
	case PaymentStatusProcessing:
		return target == PaymentStatusCompleted || target == PaymentStatusFailed || target == PaymentStatusCancelled
	case PaymentStatusCompleted:
		return target == PaymentStatusRefunded
	case PaymentStatusFailed, PaymentStatusCancelled, PaymentStatusRefunded:
		return false // Terminal states
	}
	return false
}

// IsTerminal returns true if no further transition is possible
func (s PaymentStatus) IsTerminal() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled || s == PaymentStatusRefunded
}

// AmountTolerance is the largest accepted difference between a payment and the invoice total
var AmountTolerance = decimal.NewFromFloat(0.01)

// Payment is one attempt to settle an invoice through a payment method.
// At most one payment per invoice ever reaches COMPLETED.
type Payment struct {
	shared.BaseAggregateRoot
	InvoiceID         int64
	PaymentMethodID   int64
	UserID            int64
	Amount            decimal.Decimal
	TransactionID     string
	Status            PaymentStatus
	Note              string
	PaymentDate       time.Time
	ProcessedAt       *time.Time
	ProcessorResponse string
	FailureReason     string
	GatewayReference  string
	RefundAmount      decimal.Decimal
	RefundReason      string
	RefundedAt        *time.Time
	CancelReason      string
}

// NewPayment creates a PENDING payment
func NewPayment(invoiceID, paymentMethodID, userID int64, amount decimal.Decimal, transactionID, note string) (*Payment, error) {
	if invoiceID <= 0 {
		return nil, shared.Validationf("Invoice ID is required")
	}
	if paymentMethodID <= 0 {
		return nil, shared.Validationf("Payment method ID is required")
	}
	if !amount.IsPositive() {
		return nil, shared.Validationf("Payment amount must be positive")
	}
	if strings.TrimSpace(transactionID) == "" {
		return nil, shared.Validationf("Transaction ID is required")
	}
	if len(note) > 500 {
		return nil, shared.Validationf("Payment note cannot exceed 500 characters")
	}

	root := shared.NewBaseAggregateRoot()
	return &Payment{
		BaseAggregateRoot: root,
		InvoiceID:         invoiceID,
		PaymentMethodID:   paymentMethodID,
		UserID:            userID,
		Amount:            amount,
		TransactionID:     transactionID,
		Status:            PaymentStatusPending,
		Note:              strings.TrimSpace(note),
		PaymentDate:       root.CreatedAt,
		RefundAmount:      decimal.Zero,
	}, nil
}

// MatchesAmount reports whether amount equals expected within AmountTolerance
func MatchesAmount(amount, expected decimal.Decimal) bool {
	return amount.Sub(expected).Abs().LessThanOrEqual(AmountTolerance)
}

// StartProcessing marks the payment as handed to the gateway
func (p *Payment) StartProcessing() error {
	if !p.Status.CanTransitionTo(PaymentStatusProcessing) {
		return shared.InvalidOperationf("Cannot process payment in %s status", p.Status)
	}
	p.Status = PaymentStatusProcessing
	p.Touch()
	return nil
}

// Complete records a successful gateway outcome
func (p *Payment) Complete(processorResponse, gatewayReference string) error {
	if !p.Status.CanTransitionTo(PaymentStatusCompleted) {
		return shared.InvalidOperationf("Cannot complete payment in %s status", p.Status)
	}

	now := time.Now()
	p.Status = PaymentStatusCompleted
	p.ProcessorResponse = processorResponse
	p.GatewayReference = gatewayReference
	p.ProcessedAt = &now
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentCompletedEvent(p))
	return nil
}

// Fail records an unsuccessful gateway outcome. The payment stays queryable.
func (p *Payment) Fail(reason string) error {
	if !p.Status.CanTransitionTo(PaymentStatusFailed) {
		return shared.InvalidOperationf("Cannot fail payment in %s status", p.Status)
	}
	if reason == "" {
		reason = "payment declined"
	}

	now := time.Now()
	p.Status = PaymentStatusFailed
	p.FailureReason = reason
	p.ProcessedAt = &now
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentFailedEvent(p))
	return nil
}

// Refund returns money on a COMPLETED payment. The amount may not exceed the original.
func (p *Payment) Refund(amount decimal.Decimal, reason string) error {
	if p.Status != PaymentStatusCompleted {
		return shared.InvalidOperationf("Only completed payments can be refunded, payment is %s", p.Status)
	}
	if !amount.IsPositive() {
		return shared.Validationf("Refund amount must be positive")
	}
	if amount.GreaterThan(p.Amount) {
		return shared.InvalidOperationf("Refund amount %s exceeds original amount %s",
			amount.StringFixed(2), p.Amount.StringFixed(2))
	}

	now := time.Now()
	p.Status = PaymentStatusRefunded
	p.RefundAmount = amount
	p.RefundReason = strings.TrimSpace(reason)
	p.RefundedAt = &now
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentRefundedEvent(p))
	return nil
}

// Cancel abandons a payment that has not reached the gateway outcome yet
func (p *Payment) Cancel(reason string) error {
	if p.Status != PaymentStatusPending && p.Status != PaymentStatusProcessing {
		return shared.InvalidOperationf("Cannot cancel payment in %s status", p.Status)
	}

	now := time.Now()
	p.Status = PaymentStatusCancelled
	p.CancelReason = strings.TrimSpace(reason)
	p.ProcessedAt = &now
	p.UpdatedAt = now

	p.AddDomainEvent(NewPaymentCancelledEvent(p))
	return nil
}

// IsCompleted reports whether the payment settled its invoice
func (p *Payment) IsCompleted() bool {
	return p.Status == PaymentStatusCompleted
}

// String implements fmt.Stringer for log fields
func (p *Payment) String() string {
	return fmt.Sprintf("payment %s (%s %s)", p.TransactionID, p.Status, p.Amount.StringFixed(2))
}
