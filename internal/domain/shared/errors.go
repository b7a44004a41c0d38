package shared

import (
	"errors"
	"fmt"
)

// Error codes surfaced to callers. Callers match on them with errors.Is against the
// sentinels below rather than on message text.
const (
	CodeNotFound          = "NOT_FOUND"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeDuplicateLine     = "DUPLICATE_LINE"
	CodeInvalidOperation  = "INVALID_OPERATION"
	CodeAmountMismatch    = "AMOUNT_MISMATCH"
	CodeEmptyCart         = "EMPTY_CART"
	CodeConflict          = "CONFLICT"
	CodeAlreadyPaid       = "ALREADY_PAID"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError carrying the same code. ALREADY_PAID is a refinement of
// INVALID_OPERATION and matches both.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	if e.Code == t.Code {
		return true
	}
	return e.Code == CodeAlreadyPaid && t.Code == CodeInvalidOperation
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Sentinels for errors.Is
var (
	ErrNotFound          = NewDomainError(CodeNotFound, "Resource not found")
	ErrValidation        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrInsufficientStock = NewDomainError(CodeInsufficientStock, "Insufficient stock available")
	ErrDuplicateLine     = NewDomainError(CodeDuplicateLine, "Product already has a line on this invoice")
	ErrInvalidOperation  = NewDomainError(CodeInvalidOperation, "Operation not allowed in current state")
	ErrAmountMismatch    = NewDomainError(CodeAmountMismatch, "Amount does not match invoice total")
	ErrEmptyCart         = NewDomainError(CodeEmptyCart, "Cart is empty")
	ErrConflict          = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrAlreadyPaid       = NewDomainError(CodeAlreadyPaid, "Invoice already has a completed payment")
)

// NotFoundf builds a NOT_FOUND error for the given resource
func NotFoundf(format string, args ...any) *DomainError {
	return NewDomainError(CodeNotFound, fmt.Sprintf(format, args...))
}

// Validationf builds a VALIDATION_ERROR
func Validationf(format string, args ...any) *DomainError {
	return NewDomainError(CodeValidation, fmt.Sprintf(format, args...))
}

// InvalidOperationf builds an INVALID_OPERATION error
func InvalidOperationf(format string, args ...any) *DomainError {
	return NewDomainError(CodeInvalidOperation, fmt.Sprintf(format, args...))
}

// IsDomainError reports whether err carries a DomainError anywhere in its chain
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

// ErrorCode returns the domain code of err, or "" for infrastructure errors
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
