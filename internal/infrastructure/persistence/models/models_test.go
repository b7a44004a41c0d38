package models

import (
	"testing"

	"github.com/erp/invoicing/internal/domain/finance"
	"github.com/erp/invoicing/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoiceModel_RoundTripKeepsLinesAndVersion(t *testing.T) {
	inv, err := invoicing.NewInvoice("INV-1", 3, 4, "note")
	require.NoError(t, err)
	inv.ID = 7
	inv.Version = 3
	_, err = inv.AddDetail(11, "P-011", "Lamp", 2, decimal.RequireFromString("12.50"))
	require.NoError(t, err)

	m := &InvoiceModel{}
	m.FromDomain(inv)
	require.Len(t, m.Details, 1)
	assert.Equal(t, int64(7), m.Details[0].InvoiceID)

	back := m.ToDomain()
	assert.Equal(t, 3, back.Version)
	assert.Equal(t, inv.InvoiceNumber, back.InvoiceNumber)
	assert.True(t, back.Total.Equal(inv.Total))
	assert.Equal(t, 2, back.Details[0].Quantity)
	assert.Empty(t, back.GetDomainEvents())
}

func TestPaymentModel_FromDomain(t *testing.T) {
	p, err := finance.NewPayment(1, 2, 3, decimal.NewFromInt(10), "TXN-1", "")
	require.NoError(t, err)
	require.NoError(t, p.Complete("ok", "pi_123"))

	m := &PaymentModel{}
	m.FromDomain(p)
	assert.Equal(t, finance.PaymentStatusCompleted, m.Status)
	assert.Equal(t, "pi_123", m.GatewayReference)
	assert.Equal(t, 1, m.Version)
}

func TestAll(t *testing.T) {
	assert.Len(t, All(), 7)
}
