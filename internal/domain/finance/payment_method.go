package finance

import (
	"strings"

	"github.com/erp/invoicing/internal/domain/shared"
)

// PaymentMethodCode identifies how a payment is tendered
type PaymentMethodCode string

const (
	PaymentMethodCash          PaymentMethodCode = "CASH"
	PaymentMethodCreditCard    PaymentMethodCode = "CREDIT_CARD"
	PaymentMethodDebitCard     PaymentMethodCode = "DEBIT_CARD"
	PaymentMethodBankTransfer  PaymentMethodCode = "BANK_TRANSFER"
	PaymentMethodDigitalWallet PaymentMethodCode = "DIGITAL_WALLET"
)

// AllPaymentMethodCodes lists every supported method in display order
var AllPaymentMethodCodes = []PaymentMethodCode{
	PaymentMethodCash,
	PaymentMethodCreditCard,
	PaymentMethodDebitCard,
	PaymentMethodBankTransfer,
	PaymentMethodDigitalWallet,
}

// IsValid returns true if the code is a supported payment method
func (c PaymentMethodCode) IsValid() bool {
	switch c {
	case PaymentMethodCash, PaymentMethodCreditCard, PaymentMethodDebitCard,
		PaymentMethodBankTransfer, PaymentMethodDigitalWallet:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethodCode
func (c PaymentMethodCode) String() string {
	return string(c)
}

// DisplayName returns a human readable name for the code
func (c PaymentMethodCode) DisplayName() string {
	words := strings.Split(strings.ToLower(string(c)), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// PaymentMethod is a configured way of paying an invoice
type PaymentMethod struct {
	shared.BaseEntity
	Code     PaymentMethodCode
	Name     string
	IsActive bool
}

// NewPaymentMethod creates an active payment method
func NewPaymentMethod(code PaymentMethodCode, name string) (*PaymentMethod, error) {
	if !code.IsValid() {
		return nil, shared.Validationf("Unsupported payment method: %s", code)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = code.DisplayName()
	}
	return &PaymentMethod{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		IsActive:   true,
	}, nil
}
