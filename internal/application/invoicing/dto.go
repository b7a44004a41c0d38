package invoicing

import (
	"time"

	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/shopspring/decimal"
)

// InvoiceResponse represents an invoice with its lines
type InvoiceResponse struct {
	ID            int64                   `json:"id"`
	InvoiceNumber string                  `json:"invoice_number"`
	ClientID      int64                   `json:"client_id"`
	UserID        int64                   `json:"user_id"`
	IssueDate     time.Time               `json:"issue_date"`
	Status        string                  `json:"status"`
	Subtotal      decimal.Decimal         `json:"subtotal"`
	Tax           decimal.Decimal         `json:"tax"`
	Total         decimal.Decimal         `json:"total"`
	Observations  string                  `json:"observations,omitempty"`
	IsActive      bool                    `json:"is_active"`
	FinalizedAt   *time.Time              `json:"finalized_at,omitempty"`
	PaidAt        *time.Time              `json:"paid_at,omitempty"`
	CancelledAt   *time.Time              `json:"cancelled_at,omitempty"`
	CancelReason  string                  `json:"cancel_reason,omitempty"`
	DeletedAt     *time.Time              `json:"deleted_at,omitempty"`
	DeleteReason  string                  `json:"delete_reason,omitempty"`
	ItemCount     int                     `json:"item_count"`
	Details       []InvoiceDetailResponse `json:"details"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
	Version       int                     `json:"version"`
}

// InvoiceDetailResponse represents an invoice line
type InvoiceDetailResponse struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// CreateInvoiceRequest creates an invoice directly from product lines
type CreateInvoiceRequest struct {
	ClientID     int64                `json:"client_id" validate:"required,gt=0"`
	Observations string               `json:"observations" validate:"max=500"`
	Lines        []InvoiceLineRequest `json:"lines" validate:"required,min=1,unique=ProductID,dive"`
}

// InvoiceLineRequest is one requested line
type InvoiceLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// AddProductRequest adds a product line to an invoice
type AddProductRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0"`
}

// UpdateProductRequest swaps a line for another product and quantity
type UpdateProductRequest struct {
	OldProductID int64 `json:"old_product_id" validate:"required,gt=0"`
	NewProductID int64 `json:"new_product_id" validate:"required,gt=0"`
	Quantity     int   `json:"quantity" validate:"required,gt=0"`
}

// CheckoutRequest converts the user's cart into an invoice
type CheckoutRequest struct {
	ClientID     int64  `json:"client_id" validate:"required,gt=0"`
	Observations string `json:"observations" validate:"max=500"`
}

// InvoiceListFilter represents filter options for invoice listings
type InvoiceListFilter struct {
	ClientID        int64  `json:"client_id"`
	UserID          int64  `json:"user_id"`
	Status          string `json:"status" validate:"omitempty,oneof=DRAFT FINALIZED PAID CANCELLED"`
	IncludeInactive bool   `json:"include_inactive"`
	Page            int    `json:"page" validate:"gte=0"`
	PageSize        int    `json:"page_size" validate:"gte=0,max=100"`
	OrderBy         string `json:"order_by"`
	OrderDir        string `json:"order_dir" validate:"omitempty,oneof=asc desc"`
}

// ToInvoiceResponse converts a domain Invoice to a response
func ToInvoiceResponse(inv *invoicing.Invoice) InvoiceResponse {
	details := make([]InvoiceDetailResponse, len(inv.Details))
	for i, d := range inv.Details {
		details[i] = InvoiceDetailResponse{
			ID:          d.ID,
			ProductID:   d.ProductID,
			ProductCode: d.ProductCode,
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
			UnitPrice:   d.UnitPrice,
			Subtotal:    d.Subtotal,
		}
	}
	return InvoiceResponse{
		ID:            inv.ID,
		InvoiceNumber: inv.InvoiceNumber,
		ClientID:      inv.ClientID,
		UserID:        inv.UserID,
		IssueDate:     inv.IssueDate,
		Status:        inv.Status.String(),
		Subtotal:      inv.Subtotal,
		Tax:           inv.Tax,
		Total:         inv.Total,
		Observations:  inv.Observations,
		IsActive:      inv.IsActive,
		FinalizedAt:   inv.FinalizedAt,
		PaidAt:        inv.PaidAt,
		CancelledAt:   inv.CancelledAt,
		CancelReason:  inv.CancelReason,
		DeletedAt:     inv.DeletedAt,
		DeleteReason:  inv.DeleteReason,
		ItemCount:     inv.ItemCount(),
		Details:       details,
		CreatedAt:     inv.CreatedAt,
		UpdatedAt:     inv.UpdatedAt,
		Version:       inv.Version,
	}
}

// ToInvoiceResponses converts a slice of invoices
func ToInvoiceResponses(invoices []invoicing.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		out[i] = ToInvoiceResponse(&invoices[i])
	}
	return out
}
