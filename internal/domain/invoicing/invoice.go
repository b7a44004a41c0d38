package invoicing

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/invoicing/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceDetail is a line of an invoice. UnitPrice is the product price at the
// moment the line was added and is never looked up again.
type InvoiceDetail struct {
	ID          int64
	InvoiceID   int64
	ProductID   int64
	ProductCode string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewInvoiceDetail creates a new invoice line
func NewInvoiceDetail(productID int64, productCode, productName string, quantity int, unitPrice decimal.Decimal) (*InvoiceDetail, error) {
	if productID <= 0 {
		return nil, shared.Validationf("Product ID is required")
	}
	if quantity <= 0 {
		return nil, shared.Validationf("Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.Validationf("Unit price cannot be negative")
	}

	now := time.Now()
	return &InvoiceDetail{
		ProductID:   productID,
		ProductCode: productCode,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Subtotal:    LineSubtotal(quantity, unitPrice),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// StatusPolicy selects whether line mutations require a Draft invoice
type StatusPolicy int

const (
	// EnforceDraft rejects line changes on any non-Draft invoice
	EnforceDraft StatusPolicy = iota
	// AnyStatus lets line changes through whatever the status
	AnyStatus
)

// Invoice is the aggregate root for a bill issued to a client.
// Subtotal, Tax and Total are derived from Details and are only ever set by recalculateTotals.
type Invoice struct {
	shared.BaseAggregateRoot
	InvoiceNumber string
	ClientID      int64
	UserID        int64
	IssueDate     time.Time
	Subtotal      decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Observations  string
	Status        InvoiceStatus
	IsActive      bool
	FinalizedAt   *time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	CancelReason  string
	DeletedAt     *time.Time
	DeleteReason  string
	Details       []InvoiceDetail
}

// NewInvoice creates a new Draft invoice with no lines
func NewInvoice(invoiceNumber string, clientID, userID int64, observations string) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.Validationf("Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.Validationf("Invoice number cannot exceed 50 characters")
	}
	if clientID <= 0 {
		return nil, shared.Validationf("Client ID is required")
	}
	if userID <= 0 {
		return nil, shared.Validationf("User ID is required")
	}
	if len(observations) > 500 {
		return nil, shared.Validationf("Observations cannot exceed 500 characters")
	}

	root := shared.NewBaseAggregateRoot()
	return &Invoice{
		BaseAggregateRoot: root,
		InvoiceNumber:     invoiceNumber,
		ClientID:          clientID,
		UserID:            userID,
		IssueDate:         root.CreatedAt,
		Subtotal:          decimal.Zero,
		Tax:               decimal.Zero,
		Total:             decimal.Zero,
		Observations:      strings.TrimSpace(observations),
		Status:            InvoiceStatusDraft,
		IsActive:          true,
		Details:           make([]InvoiceDetail, 0),
	}, nil
}

// RecordCreated raises InvoiceCreated once the invoice has been assigned an ID
func (i *Invoice) RecordCreated() {
	i.AddDomainEvent(NewInvoiceCreatedEvent(i))
}

// AddDetail adds a line for a product not yet on the invoice. Draft only.
func (i *Invoice) AddDetail(productID int64, productCode, productName string, quantity int, unitPrice decimal.Decimal) (*InvoiceDetail, error) {
	return i.AddDetailWithPolicy(EnforceDraft, productID, productCode, productName, quantity, unitPrice)
}

// AddDetailWithPolicy is AddDetail with an explicit status policy
func (i *Invoice) AddDetailWithPolicy(policy StatusPolicy, productID int64, productCode, productName string, quantity int, unitPrice decimal.Decimal) (*InvoiceDetail, error) {
	if err := i.checkLinePolicy(policy, "add lines to"); err != nil {
		return nil, err
	}
	if i.FindDetail(productID) != nil {
		return nil, shared.NewDomainError(shared.CodeDuplicateLine,
			fmt.Sprintf("Product %d already has a line on invoice %s", productID, i.InvoiceNumber))
	}

	detail, err := NewInvoiceDetail(productID, productCode, productName, quantity, unitPrice)
	if err != nil {
		return nil, err
	}
	detail.InvoiceID = i.ID

	i.Details = append(i.Details, *detail)
	i.recalculateTotals()
	i.Touch()

	return detail, nil
}

// RemoveDetail removes the line for productID and returns it. Draft only.
func (i *Invoice) RemoveDetail(productID int64) (InvoiceDetail, error) {
	return i.RemoveDetailWithPolicy(EnforceDraft, productID)
}

// RemoveDetailWithPolicy is RemoveDetail with an explicit status policy
func (i *Invoice) RemoveDetailWithPolicy(policy StatusPolicy, productID int64) (InvoiceDetail, error) {
	if err := i.checkLinePolicy(policy, "remove lines from"); err != nil {
		return InvoiceDetail{}, err
	}

	for idx, d := range i.Details {
		if d.ProductID == productID {
			i.Details = append(i.Details[:idx], i.Details[idx+1:]...)
			i.recalculateTotals()
			i.Touch()
			return d, nil
		}
	}

	return InvoiceDetail{}, shared.NotFoundf("Product %d has no line on invoice %s", productID, i.InvoiceNumber)
}

func (i *Invoice) checkLinePolicy(policy StatusPolicy, action string) error {
	if policy == EnforceDraft && i.Status != InvoiceStatusDraft {
		return shared.InvalidOperationf("Cannot %s an invoice in %s status", action, i.Status)
	}
	return nil
}

// Finalize locks the lines of a Draft invoice that has at least one line
func (i *Invoice) Finalize() error {
	if !i.Status.CanTransitionTo(InvoiceStatusFinalized) {
		return shared.InvalidOperationf("Cannot finalize invoice in %s status", i.Status)
	}
	if len(i.Details) == 0 {
		return shared.InvalidOperationf("Cannot finalize an invoice without lines")
	}
	if i.IsDeleted() {
		return shared.InvalidOperationf("Cannot finalize a deleted invoice")
	}

	now := time.Now()
	i.Status = InvoiceStatusFinalized
	i.FinalizedAt = &now
	i.UpdatedAt = now

	i.AddDomainEvent(NewInvoiceFinalizedEvent(i))
	return nil
}

// Cancel moves a Draft or Finalized invoice to Cancelled.
// Stock held by the lines is not released; only explicit line removal returns stock.
func (i *Invoice) Cancel(reason string) error {
	if !i.Status.CanTransitionTo(InvoiceStatusCancelled) {
		return shared.InvalidOperationf("Cannot cancel invoice in %s status", i.Status)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return shared.Validationf("Cancel reason is required")
	}

	now := time.Now()
	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &now
	i.CancelReason = reason
	i.UpdatedAt = now

	i.AddDomainEvent(NewInvoiceCancelledEvent(i))
	return nil
}

// MarkPaid moves a Finalized invoice to Paid
func (i *Invoice) MarkPaid() error {
	if !i.Status.CanTransitionTo(InvoiceStatusPaid) {
		return shared.InvalidOperationf("Cannot mark invoice paid in %s status", i.Status)
	}

	now := time.Now()
	i.Status = InvoiceStatusPaid
	i.PaidAt = &now
	i.UpdatedAt = now

	i.AddDomainEvent(NewInvoicePaidEvent(i))
	return nil
}

// SoftDelete tombstones the invoice. Finalized and Paid invoices must be cancelled first.
func (i *Invoice) SoftDelete(reason string) error {
	if i.Status != InvoiceStatusDraft && i.Status != InvoiceStatusCancelled {
		return shared.InvalidOperationf("Cannot delete invoice in %s status, cancel it first", i.Status)
	}
	if i.IsDeleted() {
		return shared.InvalidOperationf("Invoice %s is already deleted", i.InvoiceNumber)
	}

	now := time.Now()
	i.IsActive = false
	i.DeletedAt = &now
	i.DeleteReason = strings.TrimSpace(reason)
	i.UpdatedAt = now
	return nil
}

// Restore reverses SoftDelete
func (i *Invoice) Restore() {
	i.IsActive = true
	i.DeletedAt = nil
	i.DeleteReason = ""
	i.Touch()
}

// IsDeleted reports whether the invoice carries the soft-delete tombstone
func (i *Invoice) IsDeleted() bool {
	return !i.IsActive
}

// IsPayable reports whether a completed payment could settle the invoice: it is
// live and Finalized, or a Draft with at least one line that Finalize will accept.
func (i *Invoice) IsPayable() bool {
	if i.IsDeleted() {
		return false
	}
	switch i.Status {
	case InvoiceStatusFinalized:
		return true
	case InvoiceStatusDraft:
		return len(i.Details) > 0
	default:
		return false
	}
}

// FindDetail returns the line for productID, or nil
func (i *Invoice) FindDetail(productID int64) *InvoiceDetail {
	for idx := range i.Details {
		if i.Details[idx].ProductID == productID {
			return &i.Details[idx]
		}
	}
	return nil
}

// ItemCount returns the number of lines
func (i *Invoice) ItemCount() int {
	return len(i.Details)
}

// TotalQuantity returns the sum of all line quantities
func (i *Invoice) TotalQuantity() int {
	total := 0
	for _, d := range i.Details {
		total += d.Quantity
	}
	return total
}

func (i *Invoice) recalculateTotals() {
	t := CalculateTotals(i.Details)
	i.Subtotal = t.Subtotal
	i.Tax = t.Tax
	i.Total = t.Total
}
