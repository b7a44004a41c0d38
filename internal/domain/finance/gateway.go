package finance

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Payment Gateway Errors
// ---------------------------------------------------------------------------

var (
	ErrGatewayNotConfigured = errors.New("payment: gateway not configured for method")
	ErrGatewayUnavailable   = errors.New("payment: gateway temporarily unavailable")
	ErrGatewayRequestFailed = errors.New("payment: gateway request failed")
	ErrChargeInvalidAmount  = errors.New("payment: invalid charge amount")
	ErrChargeInvalidTxnID   = errors.New("payment: invalid transaction ID")
	ErrRefundInvalidAmount  = errors.New("refund: invalid refund amount")
	ErrRefundNotSupported   = errors.New("refund: not supported by gateway")
)

// ---------------------------------------------------------------------------
// Charge / Refund DTOs
// ---------------------------------------------------------------------------

// ChargeRequest asks a gateway to collect an invoice amount
type ChargeRequest struct {
	TransactionID string
	InvoiceID     int64
	InvoiceNumber string
	Method        PaymentMethodCode
	Amount        decimal.Decimal
	Currency      string
	Description   string
}

// Validate validates the charge request
func (r *ChargeRequest) Validate() error {
	if r.TransactionID == "" {
		return ErrChargeInvalidTxnID
	}
	if !r.Amount.IsPositive() {
		return ErrChargeInvalidAmount
	}
	return nil
}

// ChargeResult is the gateway outcome. A declined charge is a result, not an error.
type ChargeResult struct {
	Approved          bool
	ProcessorResponse string
	FailureReason     string
	GatewayReference  string
}

// RefundRequest asks a gateway to return money of a completed charge
type RefundRequest struct {
	TransactionID    string
	GatewayReference string
	Amount           decimal.Decimal
	Reason           string
}

// Validate validates the refund request
func (r *RefundRequest) Validate() error {
	if !r.Amount.IsPositive() {
		return ErrRefundInvalidAmount
	}
	return nil
}

// RefundResult is the gateway answer to a refund
type RefundResult struct {
	GatewayRefundID   string
	ProcessorResponse string
}

// ---------------------------------------------------------------------------
// PaymentGateway Port Interface
// ---------------------------------------------------------------------------

// PaymentGateway is the port to whatever collects money for a payment method.
// Implementations live in the infrastructure layer; tests inject deterministic ones.
type PaymentGateway interface {
	// Name identifies the gateway in logs and processor responses
	Name() string

	// Charge attempts to collect the amount. Errors mean the outcome is unknown.
	Charge(ctx context.Context, req *ChargeRequest) (*ChargeResult, error)

	// Refund returns money of a completed charge
	Refund(ctx context.Context, req *RefundRequest) (*RefundResult, error)
}

// PaymentGatewayRegistry resolves the gateway serving a payment method
type PaymentGatewayRegistry interface {
	// GetGateway returns the gateway for the method or ErrGatewayNotConfigured
	GetGateway(method PaymentMethodCode) (PaymentGateway, error)
}
