package finance

import (
	"time"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/shopspring/decimal"
)

// ProcessPaymentRequest pays an invoice through a payment method
type ProcessPaymentRequest struct {
	InvoiceID       int64           `json:"invoice_id" validate:"required,gt=0"`
	PaymentMethodID int64           `json:"payment_method_id" validate:"required,gt=0"`
	Amount          decimal.Decimal `json:"amount"`
	Note            string          `json:"note" validate:"max=500"`
	// IdempotencyKey makes a retried request fail with CONFLICT instead of charging twice
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

// RefundPaymentRequest refunds a completed payment
type RefundPaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason" validate:"max=500"`
}

// PaymentHistoryFilter pages through a user's payments
type PaymentHistoryFilter struct {
	Page     int    `json:"page" validate:"gte=0"`
	PageSize int    `json:"page_size" validate:"gte=0,max=100"`
	OrderBy  string `json:"order_by"`
	OrderDir string `json:"order_dir" validate:"omitempty,oneof=asc desc"`
}

// PaymentResponse represents a payment attempt
type PaymentResponse struct {
	ID                int64           `json:"id"`
	InvoiceID         int64           `json:"invoice_id"`
	PaymentMethodID   int64           `json:"payment_method_id"`
	UserID            int64           `json:"user_id"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionID     string          `json:"transaction_id"`
	Status            string          `json:"status"`
	Note              string          `json:"note,omitempty"`
	PaymentDate       time.Time       `json:"payment_date"`
	ProcessedAt       *time.Time      `json:"processed_at,omitempty"`
	ProcessorResponse string          `json:"processor_response,omitempty"`
	FailureReason     string          `json:"failure_reason,omitempty"`
	GatewayReference  string          `json:"gateway_reference,omitempty"`
	RefundAmount      decimal.Decimal `json:"refund_amount"`
	RefundReason      string          `json:"refund_reason,omitempty"`
	RefundedAt        *time.Time      `json:"refunded_at,omitempty"`
	CancelReason      string          `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PaymentMethodResponse represents a payment method
type PaymentMethodResponse struct {
	ID       int64  `json:"id"`
	Code     string `json:"code"`
	Name     string `json:"name"`
	IsActive bool   `json:"is_active"`
}

// ToPaymentResponse converts a domain Payment to a response
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:                p.ID,
		InvoiceID:         p.InvoiceID,
		PaymentMethodID:   p.PaymentMethodID,
		UserID:            p.UserID,
		Amount:            p.Amount,
		TransactionID:     p.TransactionID,
		Status:            p.Status.String(),
		Note:              p.Note,
		PaymentDate:       p.PaymentDate,
		ProcessedAt:       p.ProcessedAt,
		ProcessorResponse: p.ProcessorResponse,
		FailureReason:     p.FailureReason,
		GatewayReference:  p.GatewayReference,
		RefundAmount:      p.RefundAmount,
		RefundReason:      p.RefundReason,
		RefundedAt:        p.RefundedAt,
		CancelReason:      p.CancelReason,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// ToPaymentResponses converts a slice of payments
func ToPaymentResponses(payments []finance.Payment) []PaymentResponse {
	out := make([]PaymentResponse, len(payments))
	for i := range payments {
		out[i] = ToPaymentResponse(&payments[i])
	}
	return out
}

// ToPaymentMethodResponse converts a domain PaymentMethod to a response
func ToPaymentMethodResponse(m *finance.PaymentMethod) PaymentMethodResponse {
	return PaymentMethodResponse{
		ID:       m.ID,
		Code:     m.Code.String(),
		Name:     m.Name,
		IsActive: m.IsActive,
	}
}
